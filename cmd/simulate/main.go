// Command simulate drives the sampler and message ingestor against a synthetic
// platform and prints the resulting charts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/ingest"
	"guild-metrics/internal/platform"
	"guild-metrics/internal/query"
	"guild-metrics/internal/report"
	"guild-metrics/internal/repository"
	"guild-metrics/internal/sampler"
	"guild-metrics/internal/util"
)

func main() {
	driver := flag.String("driver", repository.DriverMemory, "storage driver")
	dsn := flag.String("dsn", "", "storage dsn")
	guilds := flag.Int("guilds", 3, "number of synthetic guilds")
	messages := flag.Int("messages", 5000, "messages to post across all guilds")
	workers := flag.Int("workers", 8, "concurrent message posters")
	period := flag.Duration("period", 200*time.Millisecond, "member sampling period")
	duration := flag.Duration("duration", 2*time.Second, "how long to sample for")
	locale := flag.String("locale", "ru", "chart locale")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	var logger util.MetricsLogger
	if err := logger.Init(util.LoggerOptions{Level: util.LOG_LEVEL_WARN, Console: true}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.DeInit()

	if (*driver == repository.DriverSQLite3 || *driver == repository.DriverSQLite) && *dsn != "" {
		util.CheckAndCreateLogFolder(filepath.Dir(*dsn))
	}
	store, err := repository.Open(*driver, *dsn)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	if err := store.Init(); err != nil {
		log.Fatalf("Failed to initialize %s store for simulation: %v", *driver, err)
	}
	defer store.Close()

	ids := make([]string, *guilds)
	for i := range ids {
		ids[i] = fmt.Sprintf("guild-%d", i+1)
	}
	connector := platform.NewRandomConnector(*seed, ids...)

	posted, err := simulate(store, connector, &logger, *period, *duration, *messages, *workers)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	log.Printf("Posted %d messages across %d guilds", posted, len(ids))

	if err := printCharts(store, ids, *locale); err != nil {
		log.Fatalf("Failed to print charts: %v", err)
	}
}

func simulate(store domain.MetricStore, connector *platform.RandomConnector, logger *util.MetricsLogger,
	period, duration time.Duration, messages, workers int) (int64, error) {

	s := sampler.New(connector, store, period, sampler.WithLogger(logger))
	s.Start()
	s.OnReady(connector.Guilds())

	ing := ingest.New(store, ingest.WithLogger(logger))
	var posted int64
	var next int64 = -1

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for atomic.AddInt64(&next, 1) < int64(messages) {
				if err := ing.OnMessage(ctx, connector.PickGuild()); err != nil {
					return err
				}
				atomic.AddInt64(&posted, 1)
			}
			return nil
		})
	}
	err := g.Wait()

	time.Sleep(duration)
	s.Stop()
	return posted, err
}

func printCharts(store domain.MetricStore, guildIDs []string, locale string) error {
	engine := query.NewEngine(store)
	svc := report.NewService(engine, report.NewBuilder(locale), report.NewTextRenderer(), nil)
	ctx := context.Background()

	for _, id := range guildIDs {
		fmt.Fprintf(os.Stdout, "\n== %s ==\n", id)
		for _, req := range []report.Request{
			{GuildID: id, Kind: domain.MetricMembers, Frame: domain.FrameDay, Locale: locale},
			{GuildID: id, Kind: domain.MetricMessages, Frame: domain.FrameAll, Locale: locale},
		} {
			_, out, err := svc.Render(ctx, req)
			if err != nil {
				return err
			}
			os.Stdout.Write(out)
			fmt.Fprintln(os.Stdout)
		}
	}
	return nil
}
