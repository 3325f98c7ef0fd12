package main

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bitpoet.dev/bitpoet-web/internal/cache"
	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/seo"
)

func newSitemapCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Write sitemap.xml for the configured site URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			client := newSanityClient(cfg)
			content := cms.NewCached(cms.NewClient(client), cache.New())
			entries := seo.Sitemap(ctx, seo.SiteURL(cfg.Site.URL), content, time.Now(), logger)

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return seo.WriteSitemap(w, entries)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}
