package runner

import (
	"context"
	"errors"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-inferno/config-explorer/internal/simulator"
	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/config"
	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/oracle"
)

// countingSim wraps the simulated oracle and counts real measurements
type countingSim struct {
	inner oracle.Oracle
	calls int
}

func (o *countingSim) Measure(ctx context.Context, cfg core.RunConfig) (*core.Measurement, error) {
	o.calls++
	return o.inner.Measure(ctx, cfg)
}

// failingSim fails every measurement of one model and delegates the rest
type failingSim struct {
	inner     oracle.Oracle
	failModel string
}

func (o *failingSim) Measure(ctx context.Context, cfg core.RunConfig) (*core.Measurement, error) {
	if cfg.ModelName == o.failModel {
		return nil, &oracle.MeasurementError{
			Fingerprint: core.ComputeFingerprint(&cfg),
			Err:         errors.New("load generator crashed"),
		}
	}
	return o.inner.Measure(ctx, cfg)
}

var _ = Describe("Runner", func() {
	var (
		dir string
		sim *countingSim
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "checkpoints-*")
		Expect(err).NotTo(HaveOccurred())
		sim = &countingSim{inner: simulator.New()}
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	newRunner := func(spec *config.ProfileSpec) *Runner {
		spec.CheckpointDir = dir
		return &Runner{
			Spec:   spec,
			Oracle: sim,
			Store:  checkpoint.NewStore(dir),
		}
	}

	bruteSpec := func() *config.ProfileSpec {
		return &config.ProfileSpec{
			Mode: config.ModeBrute,
			Models: []config.ModelSpec{{
				Name: "resnet50",
				Dimensions: config.DimensionSpec{
					InstanceCounts: []int{1, 2},
					MaxBatchSizes:  []int{8, 16},
					Concurrencies:  []int{1, 4},
				},
			}},
		}
	}

	quickSpec := func() *config.ProfileSpec {
		return &config.ProfileSpec{
			Mode:               config.ModeQuick,
			NumConfigsPerModel: 2,
			EarlyExitThreshold: 2,
			Models: []config.ModelSpec{{
				Name: "resnet50",
				Dimensions: config.DimensionSpec{
					Instances:    &config.MinMax{Min: 1, Max: 4},
					MaxBatchSize: &config.MinMax{Min: 8, Max: 8},
					Concurrency:  &config.MinMax{Min: 1, Max: 1},
				},
			}},
		}
	}

	Context("brute mode", func() {
		It("sweeps the space, selects finalists and persists a snapshot", func() {
			report, err := newRunner(bruteSpec()).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Mode).To(Equal("brute"))
			Expect(report.Measurements).To(HaveLen(8))
			Expect(sim.calls).To(Equal(8))

			sel := report.Selections["resnet50"]
			Expect(sel).NotTo(BeNil())
			Expect(len(sel.Ranked)).To(BeNumerically("<=", 3))

			// the snapshot is on disk with the initial version
			Expect(dir + "/0").To(BeAnExistingFile())
		})

		It("serves a rerun entirely from the checkpoint", func() {
			_, err := newRunner(bruteSpec()).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.calls).To(Equal(8))

			rerun := &countingSim{inner: simulator.New()}
			r := newRunner(bruteSpec())
			r.Oracle = rerun
			report, err := r.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(rerun.calls).To(BeZero())
			Expect(report.Measurements).To(HaveLen(8))
		})

		It("reports an interrupted run with partial results", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			report, err := newRunner(bruteSpec()).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Interrupted).To(BeTrue())
		})
	})

	Context("quick mode", func() {
		It("climbs, ranks finalists and refines them over the concurrency range", func() {
			report, err := newRunner(quickSpec()).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			sel := report.Selections["resnet50"]
			Expect(sel).NotTo(BeNil())
			Expect(sel.Ranked).NotTo(BeEmpty())
			Expect(len(sel.Ranked)).To(BeNumerically("<=", 2))

			// every finalist carries a full sweep summary
			for _, finalist := range sel.Ranked {
				summary := report.Sweeps[finalist.Measurement.Fingerprint]
				Expect(summary).NotTo(BeNil())
				Expect(summary.Concurrencies).To(HaveLen(11))
				Expect(summary.MaxThroughput).To(BeNumerically(">", 0))
				Expect(summary.BestConcurrency).To(BeNumerically(">=", 1))
			}
		})

		It("reports a run interrupted before the first measurement", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			report, err := newRunner(quickSpec()).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Interrupted).To(BeTrue())
			Expect(report.Warnings).NotTo(BeEmpty())
			Expect(sim.calls).To(BeZero())
		})

		It("skips a model whose baseline cannot be measured and searches the rest", func() {
			spec := quickSpec()
			spec.Models = append([]config.ModelSpec{{
				Name:       "flaky",
				Dimensions: spec.Models[0].Dimensions,
			}}, spec.Models...)

			r := newRunner(spec)
			r.Oracle = &failingSim{inner: simulator.New(), failModel: "flaky"}
			report, err := r.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Selections).NotTo(HaveKey("flaky"))
			Expect(report.Selections).To(HaveKey("resnet50"))
			Expect(report.Selections["resnet50"].Ranked).NotTo(BeEmpty())
			Expect(report.Warnings).To(ContainElement(ContainSubstring("flaky")))
		})

		It("prefers more instances under the simulated load", func() {
			report, err := newRunner(quickSpec()).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			best := report.Selections["resnet50"].Ranked[0]
			Expect(best.Config.TotalInstances()).To(BeNumerically(">", 1))
			Expect(best.Score).To(BeNumerically(">", 0))
		})
	})

	Context("heuristic-optimizer mode", func() {
		optimizerSpec := func() *config.ProfileSpec {
			dims := config.DimensionSpec{
				Instances:    &config.MinMax{Min: 1, Max: 2},
				MaxBatchSize: &config.MinMax{Min: 8, Max: 8},
				Concurrency:  &config.MinMax{Min: 1, Max: 1},
			}
			return &config.ProfileSpec{
				Mode:               config.ModeOptimizer,
				NumConfigsPerModel: 2,
				EarlyExitThreshold: 1,
				Models: []config.ModelSpec{
					{Name: "resnet50", Weighting: 3, Dimensions: dims},
					{Name: "bert", Weighting: 1, Dimensions: dims},
				},
			}
		}

		It("profiles plain models jointly and reports per-model selections", func() {
			report, err := newRunner(optimizerSpec()).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Selections).To(HaveKey("resnet50"))
			Expect(report.Selections).To(HaveKey("bert"))
			Expect(report.Selections["resnet50"].Ranked).NotTo(BeEmpty())
		})

		It("reports a run interrupted before the first joint measurement", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			report, err := newRunner(optimizerSpec()).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Interrupted).To(BeTrue())
			Expect(report.Warnings).NotTo(BeEmpty())
			Expect(sim.calls).To(BeZero())
		})

		It("skips a group whose joint baseline cannot be measured", func() {
			spec := optimizerSpec()
			spec.Models[0].Name = "flaky"

			r := newRunner(spec)
			r.Oracle = &failingSim{inner: simulator.New(), failModel: "flaky"}
			report, err := r.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			// the joint vector spans both models, so the whole group is skipped
			Expect(report.Selections).To(BeEmpty())
			Expect(report.Warnings).To(ContainElement(ContainSubstring("flaky")))
		})

		It("searches composing sub-models of a composite model", func() {
			spec := optimizerSpec()
			spec.Models = []config.ModelSpec{{
				Name: "ensemble",
				ComposingModels: []config.ModelSpec{
					{Name: "preprocess", Dimensions: spec.Models[0].Dimensions},
					{Name: "infer", Dimensions: spec.Models[0].Dimensions},
				},
			}}

			report, err := newRunner(spec).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Selections).To(HaveKey("preprocess"))
			Expect(report.Selections).To(HaveKey("infer"))
		})
	})

	Context("validation", func() {
		It("rejects an invalid profile before any measurement", func() {
			spec := bruteSpec()
			spec.Mode = "exhaustive"
			_, err := newRunner(spec).Run(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(sim.calls).To(BeZero())
		})

		It("rejects a recursive composition at build time", func() {
			spec := bruteSpec()
			spec.Mode = config.ModeOptimizer
			spec.Models[0].ComposingModels = []config.ModelSpec{{
				Name:            "stage",
				ComposingModels: []config.ModelSpec{{Name: "nested"}},
			}}
			_, err := newRunner(spec).Run(context.Background())
			Expect(err).To(HaveOccurred())
			capErr := &config.CapacityError{}
			Expect(err).To(BeAssignableToTypeOf(capErr))
			Expect(sim.calls).To(BeZero())
		})
	})
})
