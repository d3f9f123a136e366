package knmi

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultConcurrency bounds in-flight fetches when no limit is configured.
const DefaultConcurrency = 16

// Service orchestrates fetching every station/period archive and merging the
// payloads into per-station datasets.
type Service struct {
	fetcher     Fetcher
	merger      Merger
	output      Output
	history     RunStore
	baseURL     string
	concurrency int

	running sync.Mutex
}

// NewService creates a new Service. history may be nil.
func NewService(fetcher Fetcher, merger Merger, output Output, history RunStore, baseURL string, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		fetcher:     fetcher,
		merger:      merger,
		output:      output,
		history:     history,
		baseURL:     baseURL,
		concurrency: concurrency,
	}
}

// Run fetches the full stations x periods cross product and blocks until
// every task completed. Individual fetch failures are only recorded in the
// summary; merge failures are recorded and also returned, aggregated, so the
// caller can decide whether the run is usable.
func (s *Service) Run(ctx context.Context, stations StationRange, periods []string) (*Summary, error) {
	if err := validateRun(stations, periods); err != nil {
		return nil, err
	}
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	return s.run(ctx, uuid.NewString(), stations, periods)
}

// Start launches a run in the background and returns its id right away.
func (s *Service) Start(stations StationRange, periods []string) (string, error) {
	if err := validateRun(stations, periods); err != nil {
		return "", err
	}
	if !s.running.TryLock() {
		return "", ErrRunInProgress
	}

	runID := uuid.NewString()
	go func() {
		defer s.running.Unlock()
		if _, err := s.run(context.Background(), runID, stations, periods); err != nil {
			log.WithField("run", runID).WithError(err).Error("fetch run finished with errors")
		}
	}()
	return runID, nil
}

// History returns the run store, if any.
func (s *Service) History() RunStore {
	return s.history
}

func validateRun(stations StationRange, periods []string) error {
	if stations.Begin < 0 || stations.Len() == 0 {
		return errors.Wrapf(ErrInvalidInput, "empty station range [%d, %d)", stations.Begin, stations.End)
	}
	if len(periods) == 0 {
		return errors.Wrap(ErrInvalidInput, "no period labels")
	}
	for _, p := range periods {
		if p == "" {
			return errors.Wrap(ErrInvalidInput, "empty period label")
		}
	}
	return nil
}

func (s *Service) run(ctx context.Context, runID string, stations StationRange, periods []string) (*Summary, error) {
	logger := log.WithField("run", runID)
	summary := &Summary{
		RunID:    runID,
		Started:  time.Now().UTC(),
		Stations: stations,
		Periods:  append([]string(nil), periods...),
	}

	// A full run is authoritative for what is on disk.
	if err := s.output.Reset(); err != nil {
		return nil, errors.Wrap(err, "reset output location")
	}
	s.merger.Reset()

	logger.WithFields(log.Fields{
		"stations": stations.Len(),
		"periods":  len(periods),
	}).Info("starting fetch run")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  = make([]TaskResult, 0, stations.Len()*len(periods))
		mergeErr *multierror.Error
		sem      = make(chan struct{}, s.concurrency)
	)

	for id := stations.Begin; id < stations.End; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			stationResults, err := s.runStation(ctx, sem, id, periods)

			mu.Lock()
			defer mu.Unlock()
			results = append(results, stationResults...)
			if err != nil {
				mergeErr = multierror.Append(mergeErr, err)
			}
		}(id)
	}
	wg.Wait()

	order := make(map[string]int, len(periods))
	for i, p := range periods {
		order[p] = i
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Task.StationID != results[j].Task.StationID {
			return results[i].Task.StationID < results[j].Task.StationID
		}
		return order[results[i].Task.Period] < order[results[j].Task.Period]
	})

	summary.Results = results
	summary.Counts = countOutcomes(results)
	summary.Finished = time.Now().UTC()

	logger.WithFields(log.Fields{
		"duration": summary.Duration().String(),
		"counts":   summary.Counts,
	}).Info("completed fetch run")

	if s.history != nil {
		s.history.SaveRun(summary)
	}
	return summary, mergeErr.ErrorOrNil()
}

// runStation fetches all periods of one station concurrently, then merges
// the payloads in period order so the dataset keeps a single header and
// chronological rows.
func (s *Service) runStation(ctx context.Context, sem chan struct{}, stationID int, periods []string) ([]TaskResult, error) {
	outcomes := make([]Outcome, len(periods))

	var wg sync.WaitGroup
	for i, period := range periods {
		wg.Add(1)
		go func(i int, task FetchTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = s.fetcher.Fetch(ctx, task.URL(s.baseURL))
		}(i, FetchTask{StationID: stationID, Period: period})
	}
	wg.Wait()

	var mergeErr *multierror.Error
	results := make([]TaskResult, 0, len(periods))
	for i, period := range periods {
		task := FetchTask{StationID: stationID, Period: period}
		outcome := outcomes[i]
		res := TaskResult{Task: task, Kind: outcome.Kind}
		entry := log.WithFields(log.Fields{"station": stationID, "period": period})

		switch outcome.Kind {
		case OutcomeSuccess:
			res.Bytes = len(outcome.Payload)
			if err := s.merger.Merge(stationID, outcome.Payload); err != nil {
				entry.WithError(err).Error("merge failed")
				res.Kind = OutcomeMergeFailure
				res.Error = err.Error()
				mergeErr = multierror.Append(mergeErr, err)
			} else {
				entry.WithField("bytes", res.Bytes).Debug("merged archive")
			}
		case OutcomeNotFound:
			entry.Debug("archive not found")
		case OutcomeEmpty:
			entry.Info("archive empty")
		case OutcomeTransportError:
			if outcome.Err != nil {
				res.Error = outcome.Err.Error()
			}
			entry.WithError(outcome.Err).Warn("archive fetch failed")
		default:
			res.Kind = OutcomeTransportError
			res.Error = "unknown outcome " + string(outcome.Kind)
			entry.Warn(res.Error)
		}
		results = append(results, res)
	}

	return results, mergeErr.ErrorOrNil()
}

func countOutcomes(results []TaskResult) map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int)
	for _, r := range results {
		counts[r.Kind]++
	}
	return counts
}
