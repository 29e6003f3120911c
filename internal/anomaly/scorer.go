// Package anomaly scores per-user feature vectors with an unsupervised
// isolation-forest ensemble. Scores are population-relative: the model is
// refit over the full batch on every run and no state persists across runs.
package anomaly

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/securaware/platform/pkg/errors"
	"github.com/securaware/platform/pkg/models"
)

// Feature column names in matrix order; the scorer requires exactly these.
var featureColumns = []string{
	"login_count",
	"unique_source_hosts",
	"unique_dest_hosts",
	"failed_login_ratio",
}

// Config holds isolation-forest hyperparameters. Seed fixes the ensemble's
// RNG so identical input produces bit-identical scores.
type Config struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64
}

// DefaultConfig mirrors the platform defaults: 100 trees, 256-row subsamples,
// 5% contamination, fixed seed.
func DefaultConfig() Config {
	return Config{Trees: 100, SampleSize: 256, Contamination: 0.05, Seed: 42}
}

// Scorer fits and applies the outlier-detection ensemble.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer, filling zero-valued config fields from defaults.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.Contamination <= 0 {
		cfg.Contamination = def.Contamination
	}
	return &Scorer{cfg: cfg}
}

// Score standardizes each feature column to zero mean/unit variance across
// the batch, fits the forest over the standardized matrix, and returns every
// vector augmented with its anomaly score, signed so larger = more anomalous.
//
// Empty input is not an error: it returns an empty result so callers can
// treat "no data yet" uniformly. Non-finite feature values fail with a
// ValidationError naming the offending users, since malformed upstream data
// must not silently corrupt scores.
func (s *Scorer) Score(vectors []models.FeatureVector) ([]models.ScoredVector, error) {
	if len(vectors) == 0 {
		return []models.ScoredVector{}, nil
	}

	if err := validateNumeric(vectors); err != nil {
		return nil, err
	}

	matrix := standardize(toMatrix(vectors))

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	sample := s.cfg.SampleSize
	if sample > len(matrix) {
		sample = len(matrix)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample) + 1)))

	trees := make([]*isolationTree, s.cfg.Trees)
	for i := range trees {
		trees[i] = buildTree(subsample(matrix, sample, rng), rng, maxDepth)
	}

	// Standard anomaly score s(x) = 2^(-E[h(x)]/c(n)), in (0,1), higher =
	// more anomalous. The contamination quantile is subtracted as a constant
	// offset so roughly that fraction of the batch lands above zero.
	cNorm := avgPathLength(sample)
	if cNorm == 0 {
		// A one-row sample isolates at depth zero; keep the exponent finite.
		cNorm = 1
	}
	raw := make([]float64, len(matrix))
	for i, row := range matrix {
		sum := 0.0
		for _, t := range trees {
			sum += t.pathLength(row)
		}
		mean := sum / float64(len(trees))
		raw[i] = math.Pow(2, -mean/cNorm)
	}

	offset := quantile(raw, 1-s.cfg.Contamination)

	out := make([]models.ScoredVector, len(vectors))
	for i, v := range vectors {
		out[i] = models.ScoredVector{FeatureVector: v, AnomalyScore: raw[i] - offset}
	}
	return out, nil
}

func validateNumeric(vectors []models.FeatureVector) error {
	var bad []string
	for _, v := range vectors {
		if math.IsNaN(v.FailedLoginRatio) || math.IsInf(v.FailedLoginRatio, 0) {
			bad = append(bad, v.User)
		}
	}
	if len(bad) > 0 {
		return errors.NewValidationError("anomaly: score", "failed_login_ratio",
			"non-numeric value", bad...)
	}
	return nil
}

func toMatrix(vectors []models.FeatureVector) [][]float64 {
	matrix := make([][]float64, len(vectors))
	for i, v := range vectors {
		matrix[i] = []float64{
			float64(v.LoginCount),
			float64(v.UniqueSourceHosts),
			float64(v.UniqueDestHosts),
			v.FailedLoginRatio,
		}
	}
	return matrix
}

// standardize rescales each column to zero mean and unit variance. Columns
// with zero variance are left centered only, matching the usual scaler
// behavior of treating a constant column's scale as 1.
func standardize(matrix [][]float64) [][]float64 {
	if len(matrix) == 0 {
		return matrix
	}
	nCols := len(matrix[0])
	col := make([]float64, len(matrix))
	for c := 0; c < nCols; c++ {
		for r := range matrix {
			col[r] = matrix[r][c]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for r := range matrix {
			matrix[r][c] = (matrix[r][c] - mean) / std
		}
	}
	return matrix
}

func subsample(matrix [][]float64, n int, rng *rand.Rand) [][]float64 {
	if n >= len(matrix) {
		return matrix
	}
	idx := rng.Perm(len(matrix))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = matrix[j]
	}
	return out
}

func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}
