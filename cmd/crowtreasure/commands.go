package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/kalambet/crowtreasure/internal/chest"
	"github.com/kalambet/crowtreasure/internal/config"
	"github.com/kalambet/crowtreasure/internal/treasure"
	"github.com/kalambet/crowtreasure/internal/tui"
	"github.com/kalambet/crowtreasure/internal/view"
)

func runTUI(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	vm := view.New(a.chest, a.gen,
		view.WithDrawDelay(a.cfg.Draw.Delay),
		view.WithContext(ctx),
	)
	return tui.Run(ctx, vm)
}

// --- record ---

var recordCmd = &cobra.Command{
	Use:   "record [--emotion E] <thought...>",
	Short: "Give a thought to the crow and keep the treasure",
	Long: `Give a thought to the crow and keep the treasure.

Emotions: ` + strings.Join(treasure.Emotions, " ") + `

Examples:
  crowtreasure record "I feel the tide pulling"
  crowtreasure record --emotion 焦虑 I feel the tide pulling`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		emotion, _ := cmd.Flags().GetString("emotion")
		if emotion != "" && !treasure.IsEmotion(emotion) {
			return fmt.Errorf("unknown emotion %q (choose from %s)", emotion, strings.Join(treasure.Emotions, ", "))
		}
		thought := strings.TrimSpace(strings.Join(args, " "))
		if thought == "" {
			return fmt.Errorf("thought is required")
		}

		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := recordThought(cmd.Context(), a, thought, emotion)
		if err != nil {
			return err
		}
		return printCard(cmd.OutOrStdout(), t)
	},
}

func recordThought(ctx context.Context, a *app, thought, emotion string) (treasure.Treasure, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	draft := a.gen.Generate(ctx, thought, emotion)
	t := draft.Mint(newID(), time.Now().UTC())
	if err := a.chest.Insert(t); err != nil {
		return treasure.Treasure{}, err
	}
	return t, nil
}

func init() {
	recordCmd.Flags().StringP("emotion", "e", "", "emotion attached to the thought")
}

// --- draw ---

var drawCmd = &cobra.Command{
	Use:   "draw",
	Short: "Draw a treasure from the chest at random",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noSuspense, _ := cmd.Flags().GetBool("no-suspense")

		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.chest.Len() == 0 {
			printWarning("The chest is empty. Record a thought first.")
			return nil
		}
		if !noSuspense && a.cfg.Draw.Delay > 0 {
			printStep("The crow searches the depths of the chest...")
			time.Sleep(a.cfg.Draw.Delay)
		}

		t, _ := a.chest.Pick(nil)
		return printCard(cmd.OutOrStdout(), t)
	},
}

func init() {
	drawCmd.Flags().Bool("no-suspense", false, "skip the suspense delay")
}

// --- list / show ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List treasures, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		items := a.chest.All()
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "The chest is empty.")
			return nil
		}
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		for _, t := range items {
			fmt.Fprintln(cmd.OutOrStdout(), listLine(t))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a treasure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		t, ok := a.chest.Get(args[0])
		if !ok {
			return fmt.Errorf("no treasure with id %s", args[0])
		}
		return printCard(cmd.OutOrStdout(), t)
	},
}

func init() {
	listCmd.Flags().Int("limit", 20, "maximum number of treasures to list (0 for all)")
}

// --- delete ---

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Let the wind carry a treasure away",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")

		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		t, ok := a.chest.Get(args[0])
		if !ok {
			return fmt.Errorf("no treasure with id %s", args[0])
		}
		if !confirm {
			printWarning("%s Use --confirm to delete %q.", view.DeleteConfirmation, t.Name)
			return nil
		}
		if err := a.chest.Remove(t.ID); err != nil {
			return err
		}
		printSuccess("%q was carried away by the wind", t.Name)
		return nil
	},
}

func init() {
	deleteCmd.Flags().Bool("confirm", false, "confirm the deletion")
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the chest as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		compress, _ := cmd.Flags().GetBool("gzip")

		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := writeExport(w, a.chest, compress); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d treasures to %s", a.chest.Len(), output)
		}
		return nil
	},
}

func writeExport(w io.Writer, store *chest.Store, compress bool) error {
	if !compress {
		return store.WriteJSON(w)
	}
	zw := gzip.NewWriter(w)
	if err := store.WriteJSON(zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	exportCmd.Flags().Bool("gzip", false, "gzip-compress the export")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		var err error
		if configPath != "" {
			err = config.SetKeyAt(configPath, key, value)
		} else {
			err = config.SetKey(key, value)
		}
		if err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
