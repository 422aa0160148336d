package main

import (
	"context"
	"log"
	"net/http"
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
	"github.com/thanos-io/objstore/providers/gcs"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"

	"github.com/YimingQiao/databend/dataset"
	"github.com/YimingQiao/databend/db"
	"github.com/YimingQiao/databend/pipeline"
	"github.com/YimingQiao/databend/storage"
)

func main() {
	app := kingpin.New("scan", "Scan a parquet part through the deserialization pipeline.")
	bucketDir := app.Flag("bucket.dir", "Filesystem bucket directory.").Default("./data").String()
	gcsBucket := app.Flag("bucket.gcs", "GCS bucket name, overrides --bucket.dir.").String()
	partName := app.Flag("part", "Part name without file extension.").Required().String()
	columns := app.Flag("column", "Columns to decode, all when empty.").Strings()
	workers := app.Flag("workers", "Number of executor workers, NumCPU when 0.").Default("0").Int()
	batchSize := app.Flag("batch-size", "Number of parts fetched per source batch.").Default("2").Int()
	metricsAddr := app.Flag("metrics.addr", "Address to expose scan metrics on, disabled when empty.").String()
	if _, err := app.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	logger := level.NewFilter(kitlog.NewLogfmtLogger(os.Stderr), level.AllowInfo())

	bucket, err := openBucket(logger, *bucketDir, *gcsBucket)
	if err != nil {
		log.Fatal(err)
	}

	reader, err := db.OpenFileReader(*partName, bucket)
	if err != nil {
		log.Fatal(err)
	}
	parts, err := reader.PlanParts(*columns...)
	if err != nil {
		log.Fatal(err)
	}
	blockReader, err := db.NewBlockReader(reader, *columns...)
	if err != nil {
		log.Fatal(err)
	}

	scanProgress := pipeline.NewProgress()
	if *metricsAddr != "" {
		prometheus.MustRegister(pipeline.NewProgressCollector(scanProgress))
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	p := pipeline.NewPipeline()
	sink := pipeline.NewBlockSink()
	sourceID := p.AddProcessor(dataset.NewSource(reader, parts, *batchSize))
	transformID := p.AddProcessor(dataset.NewDeserializeTransform(blockReader, scanProgress))
	sinkID := p.AddProcessor(sink)
	p.ConnectPorts(sourceID, 0, transformID, 0)
	p.ConnectPorts(transformID, 0, sinkID, 0)

	if err := pipeline.NewExecutor(p, *workers).Execute(); err != nil {
		log.Fatal(err)
	}

	level.Info(logger).Log(
		"msg", "scan complete",
		"parts", len(parts),
		"blocks", len(sink.Blocks()),
		"rows", scanProgress.Rows(),
		"bytes", scanProgress.Bytes(),
	)
}

func openBucket(logger kitlog.Logger, dir, gcsBucketName string) (objstore.Bucket, error) {
	if gcsBucketName != "" {
		conf, err := yaml.Marshal(storage.GCSConfig{Bucket: gcsBucketName})
		if err != nil {
			return nil, err
		}
		return gcs.NewBucket(context.Background(), logger, conf, "scan")
	}
	return filesystem.NewBucket(dir)
}
