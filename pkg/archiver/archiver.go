// Package archiver moves telemetry events past their retention out of MongoDB
// into compressed bundles
package archiver

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

type Store interface {
	StreamTelemetryEvents(ctx context.Context, before time.Time, fn func(event *ctdf.TelemetryEvent) error) error
	DeleteTelemetryEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Uploader copies a finished bundle somewhere off the host
type Uploader interface {
	Upload(ctx context.Context, filename string, bundle io.Reader) error
}

type Archiver struct {
	Store    Store
	Uploader Uploader

	OutputDirectory string
	Retention       time.Duration

	Now func() time.Time
}

type Result struct {
	Cutoff     time.Time
	BundlePath string
	Archived   int
	Deleted    int64
}

// Perform writes every event older than the retention into one tar.zst bundle,
// one JSON lines file per route, uploads it when an uploader is set and then
// deletes the archived events. Nothing is deleted if any step before fails.
func (a *Archiver) Perform(ctx context.Context) (*Result, error) {
	currentTime := time.Now().UTC()
	if a.Now != nil {
		currentTime = a.Now().UTC()
	}

	result := &Result{
		Cutoff: currentTime.Add(-a.Retention),
	}

	log.Info().Time("cutoff", result.Cutoff).Msg("Archiving telemetry events")

	bundleFilename := fmt.Sprintf("telemetry-events-%s.tar.zst", currentTime.Format("20060102T150405Z"))
	bundlePath := path.Join(a.OutputDirectory, bundleFilename)

	archived, err := a.writeBundle(ctx, bundlePath, result.Cutoff, currentTime)
	if err != nil {
		os.Remove(bundlePath)
		return nil, err
	}

	result.Archived = archived

	if archived == 0 {
		os.Remove(bundlePath)
		log.Info().Msg("No telemetry events to archive")

		return result, nil
	}

	result.BundlePath = bundlePath

	if a.Uploader != nil {
		if err := a.upload(ctx, bundlePath, bundleFilename); err != nil {
			return nil, err
		}
	}

	deleted, err := a.Store.DeleteTelemetryEventsBefore(ctx, result.Cutoff)
	if err != nil {
		return nil, err
	}
	result.Deleted = deleted

	log.Info().
		Str("bundle", bundlePath).
		Int("archived", result.Archived).
		Int64("deleted", result.Deleted).
		Msg("Archive complete")

	return result, nil
}

func (a *Archiver) writeBundle(ctx context.Context, bundlePath string, cutoff time.Time, modTime time.Time) (int, error) {
	bundleFile, err := os.Create(bundlePath)
	if err != nil {
		return 0, fmt.Errorf("creating bundle: %w", err)
	}
	defer bundleFile.Close()

	zstdWriter, err := zstd.NewWriter(bundleFile)
	if err != nil {
		return 0, err
	}
	tarWriter := tar.NewWriter(zstdWriter)

	recordCount := 0
	currentRoute := ""
	var routeEvents bytes.Buffer

	flush := func() error {
		if routeEvents.Len() == 0 {
			return nil
		}

		filename := "no-route.jsonl"
		if currentRoute != "" {
			filename = fmt.Sprintf("route-%s.jsonl", currentRoute)
		}

		header := &tar.Header{
			Name:    filename,
			Mode:    0644,
			Size:    int64(routeEvents.Len()),
			ModTime: modTime,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("writing tar header: %w", err)
		}
		if _, err := tarWriter.Write(routeEvents.Bytes()); err != nil {
			return fmt.Errorf("writing %s: %w", filename, err)
		}

		routeEvents.Reset()
		return nil
	}

	encoder := json.NewEncoder(&routeEvents)

	err = a.Store.StreamTelemetryEvents(ctx, cutoff, func(event *ctdf.TelemetryEvent) error {
		if event.GetRouteID() != currentRoute {
			if err := flush(); err != nil {
				return err
			}
			currentRoute = event.GetRouteID()
		}

		recordCount++
		return encoder.Encode(event)
	})
	if err != nil {
		return 0, err
	}

	if err := flush(); err != nil {
		return 0, err
	}
	if err := tarWriter.Close(); err != nil {
		return 0, err
	}
	if err := zstdWriter.Close(); err != nil {
		return 0, err
	}

	return recordCount, bundleFile.Sync()
}

func (a *Archiver) upload(ctx context.Context, bundlePath string, bundleFilename string) error {
	reader, err := os.Open(bundlePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	return a.Uploader.Upload(ctx, bundleFilename, reader)
}

// BucketUploader writes bundles to a Google Cloud Storage bucket using the
// ambient application default credentials
type BucketUploader struct {
	BucketName string
}

func (u *BucketUploader) Upload(ctx context.Context, filename string, bundle io.Reader) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating storage client: %w", err)
	}
	defer client.Close()

	object := client.Bucket(u.BucketName).Object(filename)

	writer := object.NewWriter(ctx)
	if _, err := io.Copy(writer, bundle); err != nil {
		writer.Close()
		return fmt.Errorf("uploading %s: %w", filename, err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("uploading %s: %w", filename, err)
	}

	log.Info().Msgf("Written file %s to bucket %s", object.ObjectName(), object.BucketName())

	return nil
}
