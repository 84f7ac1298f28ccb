package whisper

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Future delivers one GenerationResult from a WhisperService.Generate
// call. It resolves once the owning replica finishes the
// whole batch; there is no partial delivery.
type Future struct {
	ch chan generateOutcome
}

type generateOutcome struct {
	result GenerationResult
	err    error
}

// Wait blocks until the result is ready or ctx is done.
func (f *Future) Wait(ctx context.Context) (GenerationResult, error) {
	select {
	case o := <-f.ch:
		return o.result, o.err
	case <-ctx.Done():
		return GenerationResult{}, ctx.Err()
	}
}

// LanguageFuture delivers one batch item's sorted language predictions.
type LanguageFuture struct {
	ch chan languageOutcome
}

type languageOutcome struct {
	preds []LanguagePrediction
	err   error
}

func (f *LanguageFuture) Wait(ctx context.Context) ([]LanguagePrediction, error) {
	select {
	case o := <-f.ch:
		return o.preds, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type replica struct {
	driver   *WhisperDriver
	detector *LanguageDetector
}

type jobKind int

const (
	jobGenerate jobKind = iota
	jobDetectLanguage
)

type job struct {
	kind      jobKind
	id        string
	ctx       context.Context
	features  Tensor
	prompts   [][]int32
	opts      GenerateOptions
	batchSize int

	futures     []*Future
	langFutures []*LanguageFuture
}

// WhisperService owns N replicas, each with its own WhisperDriver, and
// binds them to a request-dispatch pool. It shares nothing between the
// drivers itself; drivers built by ortengine.NewFactory each load their own
// vocabulary and model sessions. The driver itself is single-threaded
// per request; WhisperService is what runs replicas in parallel worker
// goroutines.
type WhisperService struct {
	replicas []*replica
	jobs     chan job
	done     chan struct{}
}

// NewWhisperService builds a service over the given drivers, one goroutine
// per replica, each building its own LanguageDetector from the driver's
// bound collaborators.
func NewWhisperService(drivers []*WhisperDriver, queueDepth int) *WhisperService {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	s := &WhisperService{
		jobs: make(chan job, queueDepth),
		done: make(chan struct{}),
	}
	for _, d := range drivers {
		encoder, decoder, modelConfig, ops := d.Collaborators()
		s.replicas = append(s.replicas, &replica{
			driver:   d,
			detector: NewLanguageDetector(encoder, decoder, d.VocabularyAdapter(), modelConfig, ops),
		})
	}
	for _, r := range s.replicas {
		go s.worker(r)
	}
	return s
}

func (s *WhisperService) worker(r *replica) {
	for {
		select {
		case j, ok := <-s.jobs:
			if !ok {
				return
			}
			s.run(r, j)
		case <-s.done:
			return
		}
	}
}

func (s *WhisperService) run(r *replica, j job) {
	switch j.kind {
	case jobGenerate:
		results, err := r.driver.Generate(j.ctx, j.features, j.prompts, j.opts)
		if err != nil {
			log.Printf("whisper: service job %s failed: %v", j.id, err)
		}
		for i, f := range j.futures {
			out := generateOutcome{err: err}
			if err == nil && i < len(results) {
				out.result = results[i]
			}
			f.ch <- out
		}
	case jobDetectLanguage:
		preds, err := r.detector.Detect(j.ctx, j.features, j.batchSize)
		if err != nil {
			log.Printf("whisper: service job %s failed: %v", j.id, err)
		}
		for i, f := range j.langFutures {
			out := languageOutcome{err: err}
			if err == nil && i < len(preds) {
				out.preds = preds[i]
			}
			f.ch <- out
		}
	}
}

// Generate submits a batch for decoding and returns one future per batch
// item, in input order. Futures are fulfilled together when the
// owning replica's batch completes.
func (s *WhisperService) Generate(ctx context.Context, features Tensor, prompts [][]int32, opts GenerateOptions) []*Future {
	futures := make([]*Future, len(prompts))
	for i := range futures {
		futures[i] = &Future{ch: make(chan generateOutcome, 1)}
	}
	id := uuid.New().String()
	log.Printf("whisper: service.Generate id=%s batch=%d", id, len(prompts))
	s.jobs <- job{kind: jobGenerate, id: id, ctx: ctx, features: features, prompts: prompts, opts: opts, futures: futures}
	return futures
}

// GenerateText tokenizes string prompts before submitting.
func (s *WhisperService) GenerateText(ctx context.Context, features Tensor, prompts [][]string, opts GenerateOptions) []*Future {
	if len(s.replicas) == 0 {
		return nil
	}
	vocab := s.replicas[0].driver.VocabularyAdapter()
	ids := make([][]int32, len(prompts))
	for i, row := range prompts {
		ids[i] = make([]int32, len(row))
		for j, tok := range row {
			ids[i][j] = vocab.Tokenize(tok)
		}
	}
	return s.Generate(ctx, features, ids, opts)
}

// DetectLanguage submits a batch of encoded features for language ranking
// and returns one future per batch item.
func (s *WhisperService) DetectLanguage(ctx context.Context, features Tensor, batchSize int) []*LanguageFuture {
	futures := make([]*LanguageFuture, batchSize)
	for i := range futures {
		futures[i] = &LanguageFuture{ch: make(chan languageOutcome, 1)}
	}
	id := uuid.New().String()
	log.Printf("whisper: service.DetectLanguage id=%s batch=%d", id, batchSize)
	s.jobs <- job{kind: jobDetectLanguage, id: id, ctx: ctx, features: features, batchSize: batchSize, langFutures: futures}
	return futures
}

// IsMultilingual reports whether the service's replicas were built from a
// multilingual model.
func (s *WhisperService) IsMultilingual() bool {
	if len(s.replicas) == 0 {
		return false
	}
	return s.replicas[0].driver.IsMultilingual()
}

// Close stops every replica's worker goroutine. Jobs already queued but not
// yet picked up are abandoned; cancellation of in-flight work is left to
// the caller's context, not this service.
func (s *WhisperService) Close() {
	close(s.done)
}
