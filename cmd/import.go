package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/boundary"
)

var (
	importShpPath   string
	importKeyField  string
	importNameField string
	importKeyPrefix string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import region boundaries from a shapefile",
	Long:  "Reads one region per shapefile key, stores its boundary as GeoJSON with a default map viewport, and upserts the regions by key.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		regions, err := boundary.ReadShapefile(importShpPath, boundary.ImportOptions{
			KeyField:  importKeyField,
			NameField: importNameField,
			KeyPrefix: importKeyPrefix,
		})
		if err != nil {
			return eris.Wrap(err, "read shapefile")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.SaveRegions(ctx, regions)
		if err != nil {
			return eris.Wrap(err, "save regions")
		}

		zap.L().Info("import complete",
			zap.String("shp", importShpPath),
			zap.Int("regions", len(regions)),
			zap.Int64("saved", n),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importShpPath, "shp", "", "path to .shp file (required)")
	importCmd.Flags().StringVar(&importKeyField, "key-field", "", "attribute holding the region key (required)")
	importCmd.Flags().StringVar(&importNameField, "name-field", "", "attribute holding the region name (default: key field)")
	importCmd.Flags().StringVar(&importKeyPrefix, "key-prefix", "", "prefix for every region key")
	_ = importCmd.MarkFlagRequired("shp")
	_ = importCmd.MarkFlagRequired("key-field")
	rootCmd.AddCommand(importCmd)
}
