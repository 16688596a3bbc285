package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecordtopo/internal/codec"
	"ecordtopo/internal/domain"
	"ecordtopo/internal/logging"
	"ecordtopo/internal/observability"
	"ecordtopo/internal/srconfig"
)

// Export derives the segment-routing document of a stitched or running
// domain. The document is stored in the ledger when one is configured.
func (o *Orchestrator) Export(ctx context.Context, id int) (doc *srconfig.Document, err error) {
	d, err := o.get(id)
	if err != nil {
		return nil, err
	}
	state := o.stateOf(d)
	if state != domain.StateStitched && state != domain.StateRunning {
		return nil, fmt.Errorf("%w: export of domain %d in state %s", domain.ErrInvalidTransition, id, state)
	}

	ctx, span := observability.StartPhase(ctx, "export", id)
	defer func() {
		observability.EndPhase(span, err)
		o.fail(ctx, id, "export", err)
	}()

	start := time.Now()
	doc, err = srconfig.Export(o.rt, d.fabric, d.edge)
	if err != nil {
		return nil, fmt.Errorf("export domain %d: %w", id, err)
	}
	o.metrics.ObserveExport("document", time.Since(start))

	if o.ledger != nil {
		if err := o.ledger.SaveDocument(ctx, id, doc, time.Now().UTC()); err != nil {
			o.log.Warn(ctx, "ledger document not recorded", logging.Domain(id), logging.Err(err))
		}
	}
	o.events.Publish(Event{Type: EventDocumentExported, DomainID: id, To: state})
	return doc, nil
}

// ExportAll writes the document of every domain to dir as co<id><ext> in
// the given format and returns the written paths. A document that fails to
// export or encode stops the run; files already written are kept.
func (o *Orchestrator) ExportAll(ctx context.Context, dir, format string) ([]string, error) {
	enc, err := codec.ExporterFor(format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	var paths []string
	for _, id := range o.order {
		doc, err := o.Export(ctx, id)
		if err != nil {
			return paths, err
		}

		start := time.Now()
		var buf bytes.Buffer
		if err := enc.Export(doc, &buf); err != nil {
			return paths, fmt.Errorf("encode domain %d: %w", id, err)
		}
		o.metrics.ObserveExport(enc.Format(), time.Since(start))

		path := filepath.Join(dir, fmt.Sprintf("co%d%s", id, codec.Extension(format)))
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
		o.log.Info(ctx, "document written", logging.Domain(id), logging.String("path", path))
	}
	return paths, nil
}
