package escrow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"atomicescrow/crypto"
	"atomicescrow/native/common"
	"atomicescrow/observability/metrics"
)

// ModuleName is the name the processor checks against the pause view.
const ModuleName = "escrow"

// Result describes a successfully applied instruction.
type Result struct {
	Op     Operation
	Record crypto.Address
	Escrow *Record
}

// Processor is the instruction router. It decodes raw instruction bytes,
// maps the positional account list and dispatches to the engine. Calls are
// serialised so each instruction is one non-interleaved unit of work.
type Processor struct {
	mu      sync.Mutex
	engine  *Engine
	pauses  common.PauseView
	logger  *slog.Logger
	metrics *metrics.EscrowMetrics
	tracer  trace.Tracer
	clock   func() time.Time
}

// NewProcessor wraps engine with the default logger and tracer.
func NewProcessor(engine *Engine) *Processor {
	return &Processor{
		engine: engine,
		logger: slog.Default(),
		tracer: otel.Tracer("escrow"),
		clock:  time.Now,
	}
}

func (p *Processor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p.logger = logger
}

func (p *Processor) SetPauseView(view common.PauseView) { p.pauses = view }

func (p *Processor) SetMetrics(m *metrics.EscrowMetrics) { p.metrics = m }

func (p *Processor) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		tracer = otel.Tracer("escrow")
	}
	p.tracer = tracer
}

// SetQuota limits how many Open requests, and how many units of asset A, each
// maker may submit per epoch.
func (p *Processor) SetQuota(q common.Quota) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine != nil {
		p.engine.SetQuota(q)
	}
}

// SetNowFunc overrides the clock used for quota epochs and latency.
func (p *Processor) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	p.clock = now
	if p.engine != nil {
		p.engine.SetNowFunc(now)
	}
}

// Engine exposes the wrapped engine for read-only lookups.
func (p *Processor) Engine() *Engine { return p.engine }

// Process applies one instruction. signers lists the addresses that signed
// the enclosing request; accounts is the positional account list.
func (p *Processor) Process(ctx context.Context, signers, accounts []crypto.Address, data []byte) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock()
	op := "unknown"
	ctx, span := p.tracer.Start(ctx, "escrow.process",
		trace.WithAttributes(attribute.Int("escrow.accounts", len(accounts))))
	defer span.End()

	res, err := p.process(ctx, signers, accounts, data, &op)
	kind := ErrorKind(err)
	span.SetAttributes(attribute.String("escrow.op", op), attribute.String("escrow.result", kind))
	p.metrics.ObserveOperation(ctx, op, kind, p.clock().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.WarnContext(ctx, "escrow instruction rejected",
			slog.String("op", op),
			slog.String("reason", kind),
			slog.Any("error", err))
		return nil, err
	}
	p.refreshOutstanding(ctx)
	span.SetStatus(codes.Ok, op)
	p.logger.InfoContext(ctx, "escrow instruction applied",
		slog.String("op", op),
		slog.String("record", res.Record.String()),
		slog.String("maker", res.Escrow.Maker.String()))
	return res, nil
}

func (p *Processor) process(ctx context.Context, signers, accounts []crypto.Address, data []byte, op *string) (*Result, error) {
	if err := common.Guard(p.pauses, ModuleName); err != nil {
		return nil, err
	}
	if p.engine == nil {
		return nil, errNilState
	}
	ix, err := DecodeInstruction(data)
	if err != nil {
		return nil, err
	}
	*op = ix.Op.String()
	trace.SpanFromContext(ctx).AddEvent("decoded", trace.WithAttributes(attribute.String("escrow.op", *op)))

	switch ix.Op {
	case OpOpen, OpOpenWide:
		accts, err := openAccountsFrom(ix.Op, accounts)
		if err != nil {
			return nil, err
		}
		rec, err := p.engine.Open(signers, accts, ix.Open)
		if err != nil {
			return nil, err
		}
		return &Result{Op: ix.Op, Record: accts.Record, Escrow: rec}, nil
	case OpFulfill, OpFulfillWide:
		accts, err := fulfillAccountsFrom(ix.Op, accounts)
		if err != nil {
			return nil, err
		}
		rec, err := p.engine.fulfill(signers, accts, ix.recordLayout())
		if err != nil {
			return nil, err
		}
		return &Result{Op: ix.Op, Record: accts.Record, Escrow: rec}, nil
	case OpCancel, OpCancelWide:
		accts, err := cancelAccountsFrom(ix.Op, accounts)
		if err != nil {
			return nil, err
		}
		rec, err := p.engine.cancel(signers, accts, ix.recordLayout())
		if err != nil {
			return nil, err
		}
		return &Result{Op: ix.Op, Record: accts.Record, Escrow: rec}, nil
	default:
		return nil, ErrUnsupportedOperation
	}
}

// refreshOutstanding sets the open-escrow gauges from the ledger so they hold
// across processes sharing it.
func (p *Processor) refreshOutstanding(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	out, err := p.engine.Outstanding()
	if err != nil {
		p.logger.WarnContext(ctx, "escrow outstanding scan failed", slog.Any("error", err))
		return
	}
	custodied := make(map[string]uint64, len(out.Custodied))
	for asset, amount := range out.Custodied {
		custodied[asset.String()] = amount
	}
	p.metrics.SetOutstanding(ctx, out.Count, custodied)
}
