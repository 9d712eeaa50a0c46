package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marrfa-assistant/internal/config"
	"marrfa-assistant/internal/logger"
	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/service"
)

// cliSetup loads configuration and a logger that writes to stderr only
// at warn level, so command output stays machine readable
func cliSetup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New("warn", cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAskCommand() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Route one query and print the structured response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := cliSetup()
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := buildApp(cmd.Context(), cfg, log, nil, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.knowledge.Load(cmd.Context()); err != nil {
				log.Warn("knowledge load failed", zap.Error(err))
			}

			resp := a.router.Handle(cmd.Context(), model.Query{
				Text:      strings.Join(args, " "),
				SessionID: sessionID,
				RequestID: uuid.NewString(),
			})
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id attached to the query")
	return cmd
}

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <query>",
		Short: "Print the intent and parsed filter of a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := cliSetup()
			if err != nil {
				return err
			}
			defer log.Sync()

			gazetteer := service.DefaultGazetteer()
			classifier := service.NewIntentClassifier(
				service.NewOpenAIClient(&cfg.OpenAI, log),
				service.DefaultIntentRules(gazetteer),
				cfg.Router.ClassifierTimeout, log, nil,
			)
			q := model.Query{Text: strings.Join(args, " ")}
			cls := classifier.Classify(cmd.Context(), q)
			out := map[string]any{
				"query":  q.Text,
				"intent": cls.Intent,
				"method": cls.Method,
			}
			if cls.Intent == model.IntentProperty {
				out["filter"] = service.NewFilterParser(gazetteer).Parse(q)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newIngestCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "ingest <chunks.jsonl>",
		Short: "Embed and store knowledge chunks from a JSON Lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := cliSetup()
			if err != nil {
				return err
			}
			defer log.Sync()

			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			if repo == nil {
				return fmt.Errorf("ingest requires PG_ENABLED")
			}
			defer repo.Close()

			if migrate {
				if err := repo.Migrate(cmd.Context()); err != nil {
					return err
				}
			}

			chunks, err := service.FileChunkLoader{Path: args[0]}.LoadKnowledgeChunks(cmd.Context())
			if err != nil {
				return err
			}

			embedded := 0
			openai := service.NewOpenAIClient(&cfg.OpenAI, log)
			if openai.IsEnabled() {
				if embedded, err = service.EmbedMissing(cmd.Context(), openai, chunks); err != nil {
					return err
				}
			} else {
				log.Warn("openai is disabled, chunks without embeddings are stored but never retrieved")
			}

			success, errs := repo.UpsertKnowledgeChunks(cmd.Context(), chunks)
			for _, e := range errs {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d of %d chunks (%d embedded)\n", success, len(chunks), embedded)
			if len(errs) > 0 {
				return fmt.Errorf("%d chunks failed", len(errs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before ingesting")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the knowledge and chat log tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := cliSetup()
			if err != nil {
				return err
			}
			defer log.Sync()

			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			if repo == nil {
				return fmt.Errorf("migrate requires PG_ENABLED")
			}
			defer repo.Close()

			if err := repo.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
