package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/paginate"
)

var (
	listFilter   string
	listPageSize int
	listOrderBy  string
	listOutput   string
	listUser     string
)

var listCmd = &cobra.Command{
	Use:   "list <regions|projects|user-projects|locations|search-locations>",
	Short: "Fetch every page of a listing and print the accumulated result",
	Long: `Fetches every page of a listing and prints the accumulated result.

user-projects lists the projects of --user, or of the user the backend
resolves, and is not ready while neither is known.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"regions", "projects", "user-projects", "locations", "search-locations"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var filter map[string]any
		if listFilter != "" {
			if err := json.Unmarshal([]byte(listFilter), &filter); err != nil {
				return eris.Wrap(err, "parse --filter")
			}
		}

		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		var res any
		var notReady bool
		switch args[0] {
		case "regions":
			res, notReady, err = accumulate(ctx, b.listings.Regions, filter)
		case "projects":
			res, notReady, err = accumulate(ctx, b.listings.Projects, filter)
		case "user-projects", "userProjects":
			filter, err = withOwner(ctx, b, filter)
			if err != nil {
				return err
			}
			res, notReady, err = accumulate(ctx, b.listings.UserProjects, filter)
		case "locations":
			res, notReady, err = accumulate(ctx, b.listings.Locations, filter)
		case "search-locations", "searchLocations":
			res, notReady, err = accumulate(ctx, b.listings.SearchLocations, filter)
		default:
			return eris.Errorf("unknown listing %q", args[0])
		}
		if err != nil {
			return eris.Wrapf(err, "list %s", args[0])
		}
		if notReady {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s listing is not ready yet\n", args[0])
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), listOutput, res)
	},
}

func accumulate[T any](ctx context.Context, acc *paginate.Accumulator[T], filter map[string]any) (any, bool, error) {
	res, err := acc.Run(ctx, filter, listPageSize, listOrderBy)
	if err != nil {
		return nil, false, err
	}
	zap.L().Debug("listing accumulated", zap.Int("objects", len(res.Objects)), zap.Bool("not_ready", res.NotReady))
	return res.Envelope, res.NotReady, nil
}

// withOwner scopes filter to the listing user unless it names one already.
func withOwner(ctx context.Context, b *backend, filter map[string]any) (map[string]any, error) {
	if _, ok := filter["user"]; ok {
		return filter, nil
	}
	id, err := resolveIdentity(ctx, b, listUser)
	if err != nil {
		return nil, eris.Wrap(err, "resolve user")
	}
	if !id.Resolved() {
		return filter, nil
	}
	if filter == nil {
		filter = map[string]any{}
	}
	filter["user"] = map[string]any{"id": id.UserID.String()}
	return filter, nil
}

func init() {
	listCmd.Flags().StringVar(&listFilter, "filter", "", `JSON filter object, e.g. '{"key_startswith": "us-"}'`)
	listCmd.Flags().IntVar(&listPageSize, "page-size", 0, "page size (default from config)")
	listCmd.Flags().StringVar(&listOrderBy, "order-by", "", "order key; prefix with - for descending")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "json", "output format: json or yaml")
	listCmd.Flags().StringVar(&listUser, "user", "", "owner for user-projects (default: the user the backend resolves)")
	rootCmd.AddCommand(listCmd)
}
