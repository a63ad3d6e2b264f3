package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docrag/internal/app"
)

var (
	collectionParent      uint
	collectionDescription string
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage the collections sources are filed under",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a collection",
	Example: `  docragctl collection create Rheumatology
  docragctl collection create Gout --parent 1`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionCreate,
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections with their full paths",
	Args:  cobra.NoArgs,
	RunE:  runCollectionList,
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Count the tags of all documents",
	Args:  cobra.NoArgs,
	RunE:  runTags,
}

func init() {
	collectionCreateCmd.Flags().UintVarP(&collectionParent, "parent", "p", 0, "parent collection id")
	collectionCreateCmd.Flags().StringVarP(&collectionDescription, "description", "d", "", "free text description")
	collectionCmd.AddCommand(collectionCreateCmd, collectionListCmd)
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	c, err := application.Collections.Create(cmd.Context(), app.CreateCollectionInput{
		Name:        args[0],
		Description: collectionDescription,
		ParentID:    collectionParent,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created collection %d %q\n", c.ID, c.Name)
	return nil
}

func runCollectionList(cmd *cobra.Command, args []string) error {
	views, err := application.Collections.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Println("No collections.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATH\tDESCRIPTION")
	for _, v := range views {
		fmt.Fprintf(w, "%d\t%s\t%s\n", v.ID, v.FullPath, preview(v.Description, 60))
	}
	return w.Flush()
}

func runTags(cmd *cobra.Command, args []string) error {
	tags, err := application.Ingest.ListTags(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tDOCUMENTS")
	for _, t := range tags {
		fmt.Fprintf(w, "%s\t%d\n", t.Tag, t.Count)
	}
	return w.Flush()
}
