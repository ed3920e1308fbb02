package estimator

import (
	"math/rand/v2"

	"github.com/astroviz/navbench/internal/scene"
	"github.com/astroviz/navbench/internal/spatial"
)

// RANSACConfig controls the geometric outlier loop. Zero Iterations
// disables RANSAC and fits all correspondences directly.
type RANSACConfig struct {
	Iterations      int     `yaml:"iterations"`
	InlierThreshold float64 `yaml:"inlier_threshold"` // pixels
	MinInliers      int     `yaml:"min_inliers"`
}

const ransacSampleSize = 6

// ransacPose fits minimal DLT sets and keeps the hypothesis with the
// largest consensus, then returns that consensus set for refinement.
// The incoming correspondences are already signature-matched, so most
// iterations see a clean sample; the loop exists to shed the occasional
// mismatched or noise-corrupted spot.
func ransacPose(corrs []Correspondence, cam scene.Camera, cfg RANSACConfig, rng *rand.Rand) (spatial.Pose, []Correspondence, bool) {
	if len(corrs) < ransacSampleSize {
		return spatial.Pose{}, nil, false
	}
	minInliers := cfg.MinInliers
	if minInliers < ransacSampleSize {
		minInliers = ransacSampleSize
	}

	var bestPose spatial.Pose
	var bestInliers []Correspondence
	sample := make([]Correspondence, ransacSampleSize)
	idx := make([]int, len(corrs))
	for i := range idx {
		idx[i] = i
	}

	for it := 0; it < cfg.Iterations; it++ {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for i := 0; i < ransacSampleSize; i++ {
			sample[i] = corrs[idx[i]]
		}
		pose, err := solveDLT(sample, cam)
		if err != nil {
			continue
		}
		var inliers []Correspondence
		for _, c := range corrs {
			if reprojectionError(pose, c, cam) <= cfg.InlierThreshold {
				inliers = append(inliers, c)
			}
		}
		if len(inliers) > len(bestInliers) {
			bestPose = pose
			bestInliers = inliers
			if len(bestInliers) == len(corrs) {
				break
			}
		}
	}
	if len(bestInliers) < minInliers {
		return spatial.Pose{}, nil, false
	}
	return bestPose, bestInliers, true
}
