package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/crowdq/internal/catalog"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/urfave/cli/v3"
)

type lookupResult struct {
	Track     *catalog.TrackInfo     `json:"track"`
	Downloads []catalog.DownloadInfo `json:"downloads"`
}

// Lookup prints catalog metadata and download candidates for every id or link in the arguments.
func (r *Runner) Lookup(ctx context.Context, cmd *cli.Command) error {
	ids := catalog.ExtractIDs(strings.Join(cmd.Args().Slice(), " "))
	if len(ids) == 0 {
		return fmt.Errorf("%w: no track ids or links given", shared.ErrMissingArgument)
	}

	client := catalog.NewClient(ctx, r.config.Catalog, r.httpClient, r.logger)

	results := make([]lookupResult, 0, len(ids))
	for _, id := range ids {
		info, err := client.Track(ctx, id)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", id, err)
		}
		downloads, err := client.DownloadInfo(ctx, id)
		if err != nil {
			return fmt.Errorf("download info %s: %w", id, err)
		}
		results = append(results, lookupResult{Track: info, Downloads: downloads})
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, cmd.Bool("pretty"))
	}

	for _, res := range results {
		r.writePlainHeader(res.Track.DisplayName())
		r.writePlain("ID: %s\n", res.Track.ID)
		r.writePlain("Available: %t\n", res.Track.Available)
		if len(res.Downloads) == 0 {
			r.writePlain("No download links\n\n")
			continue
		}
		for i, d := range res.Downloads {
			r.writePlain("%d. %s %d kbps\n", i+1, d.Codec, d.Bitrate)
		}
		r.writePlain("\n")
	}
	return nil
}
