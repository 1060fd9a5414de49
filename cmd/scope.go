package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/api"
	"github.com/rescape/region-store/internal/boundary"
	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/scope"
)

var (
	scopeUser         string
	scopeOutput       string
	scopeAssociation  string
	scopeSeedViewport bool
)

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Read and update a user's scope associations",
}

var scopeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the user's current state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		out, err := scope.NewSyncer(b.aggregates).Upsert(ctx, scope.UpsertRequest{Identity: id})
		if err != nil {
			return err
		}
		if out.Skipped {
			fmt.Fprintln(cmd.ErrOrStderr(), "user is not known yet; pass --user or configure a graphql token")
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), scopeOutput, out.UserState)
	},
}

var scopeUpsertCmd = &cobra.Command{
	Use:   "upsert <userRegions|userProjects|userSearchLocations>",
	Short: "Merge one association into a scope and persist the user's state",
	Long: `Merges the association given by --association into the named scope of the
user's state and persists the result. The association names its entity under
the scope's entity key, e.g. '{"region": {"id": 10}, "activity": {"isActive": true}}'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sc, ok := model.ScopeByName(args[0])
		if !ok {
			return eris.Errorf("unknown scope %q", args[0])
		}

		var rec map[string]any
		if err := json.Unmarshal([]byte(scopeAssociation), &rec); err != nil {
			return eris.Wrap(err, "parse --association")
		}
		sub := model.DecodeAssociation(sc.EntityKey, rec)

		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		id, err := resolveIdentity(ctx, b, scopeUser)
		if err != nil {
			return err
		}
		if !id.Resolved() {
			fmt.Fprintln(cmd.ErrOrStderr(), "user is not known yet; nothing was saved")
			return nil
		}

		if scopeSeedViewport && sc.Name == model.ScopeRegions.Name {
			if regionID, ok := sub.EntityID(); ok {
				region, err := api.RegionByID(b.listings.Regions)(ctx, regionID)
				if err != nil {
					return eris.Wrapf(err, "load region %s", regionID)
				}
				if region != nil {
					seeded, changed, err := boundary.SeedViewport(sub, *region)
					if err != nil {
						return err
					}
					if changed {
						zap.L().Info("seeded viewport from region bounds", zap.String("region", regionID.String()))
					}
					sub = seeded
				}
			}
		}

		id, err := resolveIdentity(ctx, b, scopeUser)
		if err != nil {
			return err
		}

		out, err := scope.NewSyncer(b.aggregates).Upsert(ctx, scope.UpsertRequest{
			Identity:  id,
			Scope:     sc,
			Submitted: &sub,
		})
		if err != nil {
			return err
		}
		if out.Skipped {
			fmt.Fprintln(cmd.ErrOrStderr(), "user is not known yet; nothing was saved")
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), scopeOutput, out.UserState)
	},
}

func init() {
	scopeCmd.PersistentFlags().StringVar(&scopeUser, "user", "", "user id (default: the user the backend resolves)")
	scopeCmd.PersistentFlags().StringVarP(&scopeOutput, "output", "o", "json", "output format: json or yaml")

	scopeUpsertCmd.Flags().StringVar(&scopeAssociation, "association", "", "association JSON (required)")
	scopeUpsertCmd.Flags().BoolVar(&scopeSeedViewport, "seed-viewport", false, "fill mapbox.viewport of a region association from the region bounds")
	_ = scopeUpsertCmd.MarkFlagRequired("association")

	scopeCmd.AddCommand(scopeShowCmd, scopeUpsertCmd)
	rootCmd.AddCommand(scopeCmd)
}
