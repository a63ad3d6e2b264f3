package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/app"
)

var (
	searchTopK      int
	searchThreshold float64
	searchJSON      bool
	askConversation string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank stored chunks by similarity to a query",
	Long: `Embed the query with the configured embedder and scan every vector
produced by the same embedder.

Examples:
  docragctl search "methotrexate dosing"
  docragctl search "joint erosion" --top-k 10 --threshold 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the best matching chunks",
	Long: `Answer a question from the best matching chunks. The reply names its
conversation; pass it back with --conversation to ask a follow-up.

Examples:
  docragctl ask "first line therapy for gout"
  docragctl ask "and in renal impairment?" --conversation conv_1a2b3c4d5e6f`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

var conversationCmd = &cobra.Command{
	Use:   "conversation <id>",
	Short: "Show the questions and answers of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversation,
}

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Drop every vector and embed all chunks again",
	Args:  cobra.NoArgs,
	RunE:  runReembed,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, askCmd} {
		c.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "max results (default from config)")
		c.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum cosine score (default from config)")
	}
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print hits as JSON")
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "continue this conversation")
}

func searchArgs(cmd *cobra.Command) (int, float64) {
	topK, threshold := cfg.Search.TopK, cfg.Search.Threshold
	if cmd.Flags().Changed("top-k") {
		topK = searchTopK
	}
	if cmd.Flags().Changed("threshold") {
		threshold = searchThreshold
	}
	return topK, threshold
}

func runSearch(cmd *cobra.Command, args []string) error {
	topK, threshold := searchArgs(cmd)
	hits, err := application.Search.SearchHits(cmd.Context(), args[0], topK, threshold)
	if err != nil {
		return err
	}
	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(hits))
	printHits(hits)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	topK, threshold := searchArgs(cmd)
	res, err := application.Search.Ask(cmd.Context(), app.AskInput{
		ConversationID: askConversation,
		Query:          args[0],
		TopK:           topK,
		Threshold:      threshold,
	})
	if err != nil {
		return err
	}
	fmt.Println(res.Answer)
	fmt.Printf("\n(conversation %s)\n", res.ConversationID)
	if verbose {
		fmt.Println("\nSources:")
		printHits(res.Hits)
	}
	return nil
}

func runConversation(cmd *cobra.Command, args []string) error {
	turns, err := application.Search.GetConversation(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for i, t := range turns {
		fmt.Printf("[%d] %s\n", i+1, t.CreatedAt.Local().Format(time.DateTime))
		fmt.Printf("Q: %s\n", t.Query)
		fmt.Printf("A: %s\n", t.Answer)
		for _, c := range t.Citations {
			fmt.Printf("   - %s chunk %d  score %.3f\n", c.Source, c.ChunkID, c.Score)
		}
		fmt.Println()
	}
	return nil
}

func runReembed(cmd *cobra.Command, args []string) error {
	stats, err := application.Search.ReembedAll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d vectors, embedded %d of %d chunks (%d failed) with %s\n",
		stats.Deleted, stats.Succeeded, stats.TotalChunks, stats.Failed, application.Embedder.Name())
	return nil
}

func printHits(hits []app.SearchHit) {
	for i, h := range hits {
		fmt.Printf("%d. %s #%d  score %.3f\n", i+1, h.Source, h.ChunkIndex, h.Score)
		fmt.Printf("   %s\n", preview(h.Text, 160))
	}
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
