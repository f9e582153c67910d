// Command genweights writes a seeded fusion weights file and an identity
// scaler so the service can start without a trained model. Predictions made
// with these artifacts are structurally valid but meaningless.
//
// Usage:
//
//	go run ./cmd/genweights -seed 42 \
//	  -weights model/fusion.safetensors \
//	  -scaler model/scaler.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	"github.com/couchcryptid/diversity-predict-service/internal/fusion"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	seed := flag.Uint64("seed", 42, "seed for the parameter initialisation")
	weightsOut := flag.String("weights", "model/fusion.safetensors", "output path for the weights file")
	scalerOut := flag.String("scaler", "model/scaler.json", "output path for the scaler file")
	flag.Parse()

	if *weightsOut == "" || *scalerOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -weights, -scaler")
	}

	sd := fusion.RandomWeights(*seed)
	if err := sd.Validate(); err != nil {
		return fmt.Errorf("generated weights: %w", err)
	}
	if err := writeWeights(*weightsOut, sd); err != nil {
		return err
	}

	if err := writeScaler(*scalerOut, domain.IdentityScaler()); err != nil {
		return err
	}

	fmt.Printf("Wrote %d tensors to %s (seed %d)\n", len(sd), *weightsOut, *seed)
	fmt.Printf("Wrote identity scaler to %s\n", *scalerOut)
	return nil
}

func writeWeights(path string, sd fusion.StateDict) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create weights file: %w", err)
	}
	if err := fusion.WriteSafetensors(f, sd); err != nil {
		f.Close()
		return fmt.Errorf("write weights: %w", err)
	}
	return f.Close()
}

func writeScaler(path string, s *domain.Scaler) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scaler: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}
	return nil
}
