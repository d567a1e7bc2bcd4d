package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lovoo/goka"
	"github.com/niksmo/club-stock/config"
	"github.com/niksmo/club-stock/internal/adapter"
	"github.com/niksmo/club-stock/internal/adapter/kafka"
	"github.com/niksmo/club-stock/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	partitions        = 3
	replicationFactor = 3
	minInsyncReplicas = "2"
	deletePolicy      = "delete"
	compactPolicy     = "compact"
)

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()

	cl, err := createClient(cfg)
	if err != nil {
		printFail(err)
		return
	}
	defer cl.Close()

	streams := []string{
		cfg.Broker.Topics.OrdersPlaced,
		cfg.Broker.Topics.StockChanged,
	}
	tables := []string{
		toGroupTable(cfg.Broker.Consumers.StockSnapshotGroup),
	}

	printStart(append(streams, tables...))
	defer printComplete(time.Now())

	err = makeTopics(sigCtx, cl, deletePolicy, streams...)
	if err != nil {
		printFail(err)
		return
	}

	// group table topics keep the latest snapshot of every product
	err = makeTopics(sigCtx, cl, compactPolicy, tables...)
	if err != nil {
		printFail(err)
		return
	}
}

func createClient(cfg config.Config) (*kadm.Client, error) {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Broker.SeedBrokers...)}

	if t := cfg.Broker.TLS; t.Enabled() {
		tlsConfig, err := adapter.MakeTLSConfig(t.CA, t.Cert, t.Key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kafka.TLSOpts(tlsConfig)...)
	}

	return kadm.NewOptClient(opts...)
}

func makeTopics(
	ctx context.Context, cl *kadm.Client, cleanupPolicy string, topics ...string,
) error {
	minISR := minInsyncReplicas

	config := map[string]*string{
		"cleanup.policy":      &cleanupPolicy,
		"min.insync.replicas": &minISR,
	}

	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		config,
		topics...,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		err := res.Err
		if err != nil {
			if errors.Is(res.Err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, fmt.Errorf("topic %q: %w", res.Topic, err))
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

func printStart(topics []string) {
	fmt.Println("initializing topics...")
	for _, topic := range topics {
		fmt.Printf("\t- %q\n", topic)
	}
	fmt.Println()
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}

func toGroupTable(group string) string {
	return string(goka.GroupTable(goka.Group(group)))
}
