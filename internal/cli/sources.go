package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/app"
	"docrag/internal/model"
)

var (
	addTitle      string
	addCollection uint
)

var addCmd = &cobra.Command{
	Use:   "add <file|url>",
	Short: "Add a PDF, a text file or a webpage and queue it for ingestion",
	Long: `Add a source item and create its pending job.

An http(s) argument is stored as a webpage. A .pdf path is copied into the
upload directory. Any other path is read as plain text.

Examples:
  docragctl add paper.pdf
  docragctl add notes.txt --title "Meeting notes"
  docragctl add https://example.org/article --collection 2`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <document|webpage> <id>",
	Short: "Create the pending job for an existing source",
	Args:  cobra.ExactArgs(2),
	RunE:  runEnqueue,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document|webpage> <id>",
	Short: "Delete a source with its chunks, embeddings and job",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func init() {
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "title for a text file (default: file name)")
	addCmd.Flags().UintVar(&addCollection, "collection", 0, "file the source under this collection id")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := args[0]

	var (
		ref model.SourceRef
		job *model.JobRecord
		err error
	)
	switch {
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		var page *model.Webpage
		page, job, err = application.Ingest.CrawlWebpage(ctx, target, addCollection)
		if page != nil {
			ref = page.Ref()
		}
	case strings.EqualFold(filepath.Ext(target), ".pdf"):
		var doc *model.Document
		doc, job, err = application.Ingest.ImportFileInto(ctx, target, addCollection)
		if doc != nil {
			ref = doc.Ref()
		}
	default:
		var doc *model.Document
		doc, job, err = addTextFile(cmd, target)
		if doc != nil {
			ref = doc.Ref()
		}
	}
	if err != nil {
		return fmt.Errorf("add %s: %w", target, err)
	}

	fmt.Printf("Added %s, job %d is %s\n", ref, job.ID, job.Status)
	return nil
}

func addTextFile(cmd *cobra.Command, path string) (*model.Document, *model.JobRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	title := addTitle
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return application.Ingest.CreateDocument(cmd.Context(), app.CreateDocumentInput{
		Title:        title,
		Content:      string(content),
		CollectionID: addCollection,
	})
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	ref, err := parseSource(args[0], args[1])
	if err != nil {
		return err
	}
	job, err := application.Ingest.Enqueue(cmd.Context(), ref.Kind, ref.ID)
	if err != nil {
		if job != nil {
			return fmt.Errorf("job %d for %s is %s: %w", job.ID, ref, job.Status, err)
		}
		return err
	}
	fmt.Printf("Job %d for %s is %s\n", job.ID, ref, job.Status)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ref, err := parseSource(args[0], args[1])
	if err != nil {
		return err
	}
	if err := application.Ingest.DeleteSource(cmd.Context(), ref); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", ref)
	return nil
}
