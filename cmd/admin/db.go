package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"worldforge.ai/internal/persistence/indexdb"
)

// dbCmd lists what the runtime index recorded for a world. The index is
// opened read-only so it can be inspected while worldgen is running.
func dbCmd(what string, args []string) {
	fs := flag.NewFlagSet(what, flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	all := fs.Bool("all", false, "do not filter rows by world id")
	regionArg := fs.String("region", "", "chunks only: landblock x,y")
	_ = fs.Parse(args)

	path := filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	db, err := indexdb.OpenReadOnly(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer db.Close()

	filter := *worldID
	if *all {
		filter = ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch what {
	case "planets":
		rows, err := indexdb.ListPlanets(ctx, db, filter)
		if err != nil {
			fail(err)
		}
		fmt.Fprintln(tw, "WORLD\tSEED\tHEIGHTS\tRIVERS\tSIZE\tSHA256\tRECORDED")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d/%d/%d\t%d\t%s\t%s\t%s\n",
				r.WorldID, r.Seed, r.WaterHeight, r.PlainsHeight, r.HillsHeight, r.Rivers,
				humanize.Bytes(uint64(r.Bytes)), short(r.SHA256), ago(r.RecordedAt))
		}
	case "regions":
		rows, err := indexdb.ListRegions(ctx, db, filter)
		if err != nil {
			fail(err)
		}
		fmt.Fprintln(tw, "WORLD\tREGION\tSTAGE\tUPDATED\tERROR")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%d,%d\t%s\t%s\t%s\n", r.WorldID, r.X, r.Y, r.Stage, ago(r.UpdatedAt), r.Error)
		}
	case "chunks":
		var region *[2]int
		if strings.TrimSpace(*regionArg) != "" {
			x, y, err := parsePair(*regionArg)
			if err != nil {
				fmt.Fprintln(os.Stderr, "bad -region:", err)
				os.Exit(2)
			}
			region = &[2]int{x, y}
		}
		rows, err := indexdb.ListChunks(ctx, db, filter, region)
		if err != nil {
			fail(err)
		}
		var total int64
		fmt.Fprintln(tw, "WORLD\tREGION\tCHUNK\tTREES\tPLANTS\tSAVES\tSIZE\tUPDATED")
		for _, r := range rows {
			total += r.Bytes
			fmt.Fprintf(tw, "%s\t%d,%d\t%d_%d\t%d\t%d\t%d\t%s\t%s\n",
				r.WorldID, r.RX, r.RY, r.CX, r.CY, r.Trees, r.Plants, r.Saves,
				humanize.Bytes(uint64(r.Bytes)), ago(r.UpdatedAt))
		}
		fmt.Fprintf(tw, "%s chunks\t\t\t\t\t\t%s\t\n", humanize.Comma(int64(len(rows))), humanize.Bytes(uint64(total)))
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "query:", err)
	os.Exit(1)
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func ago(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}
