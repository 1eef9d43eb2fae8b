package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dhruv3/CudaCode/internal/sieve"
	"github.com/google/uuid"
)

// ErrInvalidRunID is returned for ids that do not name a single run directory.
var ErrInvalidRunID = errors.New("invalid run id")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string        `json:"id"`
	Bound         int           `json:"bound"`
	Device        string        `json:"device"`
	Compute       string        `json:"compute"`
	Timestamp     time.Time     `json:"timestamp"`
	Groups        int           `json:"groups"`
	LanesPerGroup int           `json:"lanes_per_group"`
	Width         int           `json:"width"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	PrimeCount    int           `json:"prime_count"`
	LargestPrime  int           `json:"largest_prime"`
}

func (s *Store) Save(result *sieve.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("sieve_%d_%s", result.Bound, uuid.New().String())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	primes := result.Primes()
	meta := RunMetadata{
		ID:            runID,
		Bound:         result.Bound,
		Device:        result.Capability.Name,
		Compute:       result.Capability.Version(),
		Timestamp:     now,
		Groups:        result.Launch.Groups,
		LanesPerGroup: result.Launch.LanesPerGroup,
		Width:         result.Width,
		Elapsed:       result.Elapsed,
		PrimeCount:    len(primes),
	}
	if len(primes) > 0 {
		meta.LargestPrime = primes[len(primes)-1]
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "primes.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"n", "prime"}); err != nil {
		return "", err
	}
	for i, p := range primes {
		if err := w.Write([]string{strconv.Itoa(i + 1), strconv.Itoa(p)}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})

	return runs, nil
}

func checkRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." || filepath.Base(runID) != runID {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadPrimes(runID string) ([]int, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	csvPath := filepath.Join(s.baseDir, runID, "primes.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 2

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return []int{}, nil
	}

	primes := make([]int, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		p, err := strconv.Atoi(records[i][1])
		if err != nil {
			return nil, fmt.Errorf("run %s: row %d: %w", runID, i, err)
		}
		primes = append(primes, p)
	}

	return primes, nil
}
