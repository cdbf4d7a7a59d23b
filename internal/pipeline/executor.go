// Package pipeline composes the transform stages for a single job:
// decode, geometry, optional perturbation, then a direct encode or the
// size-target quality search.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dunamismax/batchpix/internal/domain"
	"github.com/dunamismax/batchpix/internal/imaging"
	"github.com/dunamismax/batchpix/internal/preview"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Executor struct {
	encoder  imaging.Encoder
	previews preview.Store
	tracer   trace.Tracer
}

func NewExecutor(previews preview.Store) *Executor {
	return &Executor{
		encoder:  imaging.NewEncoder(),
		previews: previews,
		tracer:   otel.Tracer("batchpix/pipeline"),
	}
}

// Execute runs the full pipeline for one job under its settings snapshot.
// It never mutates the source bytes; on success the result owns a fresh
// byte buffer and a newly acquired preview handle.
func (e *Executor) Execute(ctx context.Context, job domain.Job) (domain.Result, error) {
	settings := job.Settings

	ctx, span := e.tracer.Start(ctx, "pipeline.execute")
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.tool", string(settings.Tool)),
		attribute.String("job.format", string(settings.Format)),
		attribute.Int("job.source_bytes", len(job.Source.Bytes)),
	)
	defer span.End()

	src, err := imaging.Decode(job.Source.Bytes, job.Source.Mime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return domain.Result{}, err
	}

	bounds := src.Bounds()
	plan := imaging.PlanFor(bounds.Dx(), bounds.Dy(), settings)
	surface := imaging.Render(src, plan)

	if settings.Tool == domain.ToolMD5 {
		imaging.Perturb(surface)
	}

	var (
		data []byte
		met  = true
	)
	if settings.Tool == domain.ToolCompress && settings.Format.SupportsQuality() {
		targetBytes := settings.Compress.MaxSizeKB * 1024
		data, met, err = imaging.SearchSizeTarget(e.encoder, surface, settings.Format, targetBytes)
	} else {
		// Formats without a quality knob get a single max-fidelity encode;
		// for compress the size guarantee is then best-effort via the
		// geometry downscale alone.
		data, err = e.encoder.Encode(surface, settings.Format, 1)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return domain.Result{}, err
	}

	handle, err := e.previews.Put(ctx, job.ID, data, settings.Format.MIME())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "preview staging failed")
		return domain.Result{}, fmt.Errorf("stage preview: %w", err)
	}

	span.SetAttributes(attribute.Int("result.bytes", len(data)))
	span.SetStatus(codes.Ok, "transformed")

	return domain.Result{
		Bytes:          data,
		Mime:           settings.Format.MIME(),
		Width:          plan.Width,
		Height:         plan.Height,
		OriginalSize:   len(job.Source.Bytes),
		CompressedSize: len(data),
		SizeTargetMet:  met,
		Filename:       domain.OutputFilename(job.Source.Name, settings),
		PreviewHandle:  handle,
	}, nil
}
