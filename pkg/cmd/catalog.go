package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/photovault/pkg/app"
	"github.com/yeisme/photovault/pkg/internal/service"
	"github.com/yeisme/photovault/pkg/internal/types"
)

var (
	searchTags      []string
	searchLocations []string
	searchMediaType string
	searchAfter     string
	searchBefore    string
	searchSort      string
	searchOrder     string
	searchOffset    int
	searchLimit     int

	pendingAfter  string
	pendingOffset int
	pendingLimit  int

	exportFile string
	importFile string

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "print catalog totals and grouped counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			svc := service.NewCatalogService(a.Ctx)
			stats, err := svc.Stats(a.Ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	searchCmd = &cobra.Command{
		Use:   "search",
		Short: "search assets by tags, locations, media type and date bounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			after, err := parseDateFlag(searchAfter)
			if err != nil {
				return fmt.Errorf("invalid --after: %w", err)
			}

			before, err := parseDateFlag(searchBefore)
			if err != nil {
				return fmt.Errorf("invalid --before: %w", err)
			}

			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			svc := service.NewCatalogService(a.Ctx)
			page, err := svc.Search(a.Ctx, &types.SearchParams{
				Tags:      searchTags,
				Locations: searchLocations,
				MediaType: searchMediaType,
				After:     after,
				Before:    before,
				SortField: types.SortField(searchSort),
				SortOrder: types.SortOrder(searchOrder),
				Offset:    searchOffset,
				Limit:     searchLimit,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), page)
		},
	}

	pendingCmd = &cobra.Command{
		Use:   "pending",
		Short: "list assets that still lack tags, caption and location",
		RunE: func(cmd *cobra.Command, args []string) error {
			after, err := parseDateFlag(pendingAfter)
			if err != nil {
				return fmt.Errorf("invalid --after: %w", err)
			}

			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			svc := service.NewCatalogService(a.Ctx)
			page, err := svc.Pending(a.Ctx, &types.PendingParams{
				After:  after,
				Offset: pendingOffset,
				Limit:  pendingLimit,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), page)
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "export all asset records as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			var w io.Writer = cmd.OutOrStdout()
			if exportFile != "" {
				f, err := os.Create(exportFile)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			svc := service.NewCatalogService(a.Ctx)
			n, err := svc.Export(a.Ctx, w)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d asset records\n", n)

			return nil
		},
	}

	importCmd = &cobra.Command{
		Use:   "import",
		Short: "import asset records from a JSON lines file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			var r io.Reader = cmd.InOrStdin()
			if importFile != "" {
				f, err := os.Open(importFile)
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			svc := service.NewCatalogService(a.Ctx)
			n, err := svc.Import(a.Ctx, r)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "imported %d asset records\n", n)

			return nil
		},
	}

	deleteCmd = &cobra.Command{
		Use:     "delete <asset-key>",
		Short:   "delete an asset record and its index entries",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			svc := service.NewCatalogService(a.Ctx)
			if err := svc.RemoveAsset(a.Ctx, args[0]); err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "deleted", args[0])

			return nil
		},
	}

	urlThumbSize string

	urlCmd = &cobra.Command{
		Use:   "url <asset-key>",
		Short: "print a presigned download link for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			svc := service.NewCatalogService(a.Ctx)

			var (
				u   string
				err error
			)

			if urlThumbSize != "" {
				var w, h int
				if _, err := fmt.Sscanf(urlThumbSize, "%dx%d", &w, &h); err != nil {
					return fmt.Errorf("invalid --thumb, expected WxH: %w", err)
				}

				u, err = svc.ThumbnailURL(a.Ctx, args[0], w, h)
			} else {
				u, err = svc.AssetDownloadURL(a.Ctx, args[0])
			}

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), u)

			return nil
		},
	}

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "rebuild the secondary indexes of the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			svc := service.NewCatalogService(a.Ctx)
			if err := svc.Reindex(a.Ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "reindex complete")

			return nil
		},
	}
)

// parseDateFlag 解析日期参数，支持 RFC3339 与 YYYY-MM-DD 两种写法.
func parseDateFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}

	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))

	return err
}

// registerCatalogCommands 注册目录查询与维护命令.
func registerCatalogCommands() {
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "required tag, repeatable")
	searchCmd.Flags().StringSliceVar(&searchLocations, "location", nil, "required location value, repeatable")
	searchCmd.Flags().StringVar(&searchMediaType, "media-type", "", "required media type")
	searchCmd.Flags().StringVar(&searchAfter, "after", "", "inclusive lower date bound")
	searchCmd.Flags().StringVar(&searchBefore, "before", "", "exclusive upper date bound")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "sort field: date, identifier, filename, mediatype")
	searchCmd.Flags().StringVar(&searchOrder, "order", "", "sort order: asc, desc")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "result offset")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "page size, 0 for default")

	pendingCmd.Flags().StringVar(&pendingAfter, "after", "", "only assets imported at or after this date")
	pendingCmd.Flags().IntVar(&pendingOffset, "offset", 0, "result offset")
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", 0, "page size, 0 for default")

	exportCmd.Flags().StringVarP(&exportFile, "output", "o", "", "write to file instead of stdout")
	importCmd.Flags().StringVarP(&importFile, "input", "i", "", "read from file instead of stdin")
	urlCmd.Flags().StringVar(&urlThumbSize, "thumb", "", "thumbnail size as WxH instead of the original file")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(reindexCmd)
}
