// Command checkmodel loads the fusion weights and scaler, then runs forward
// passes on random inputs to confirm the artifacts are usable. It makes no
// Earth Engine calls.
//
// Usage:
//
//	go run ./cmd/checkmodel \
//	  -weights model/fusion.safetensors \
//	  -scaler model/scaler.json -runs 3
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	"github.com/couchcryptid/diversity-predict-service/internal/fusion"
)

func main() {
	weights := flag.String("weights", "model/fusion.safetensors", "path to the weights file")
	scalerPath := flag.String("scaler", "model/scaler.json", "path to the scaler file")
	runs := flag.Int("runs", 1, "number of random inputs to evaluate")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "seed for the random inputs")
	flag.Parse()

	fmt.Println("=== Fusion Model Check ===")
	fmt.Println()

	model, err := fusion.Load(*weights)
	if err != nil {
		fail("load weights", err)
	}
	fmt.Printf("  %-24s %s\n", "weights", *weights)

	scaler, err := domain.LoadScaler(*scalerPath)
	if err != nil {
		fail("load scaler", err)
	}
	fmt.Printf("  %-24s %s\n", "scaler", *scalerPath)
	fmt.Println()

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	for i := range *runs {
		thumb := domain.NewThumbnail(fusion.ImageSize, fusion.ImageSize)
		for j := range thumb.Pix {
			thumb.Pix[j] = rng.Float64()
		}
		var raw domain.FeatureVector
		for j := range raw {
			raw[j] = rng.NormFloat64()
		}
		scaled, err := scaler.Transform(raw)
		if err != nil {
			fail("scale features", err)
		}

		pred, err := model.Predict(thumb, scaled)
		if err != nil {
			fail("forward pass", err)
		}
		if math.IsNaN(pred.Alpha) || math.IsNaN(pred.Beta) || math.IsInf(pred.Alpha, 0) || math.IsInf(pred.Beta, 0) {
			fail("forward pass", fmt.Errorf("non-finite output alpha=%v beta=%v", pred.Alpha, pred.Beta))
		}
		fmt.Printf("  run %-3d alpha=%.6f beta=%.6f\n", i+1, pred.Alpha, pred.Beta)
	}

	fmt.Println("\nModel check passed.")
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "\n%s: %v\nModel check FAILED.\n", step, err)
	os.Exit(1)
}
