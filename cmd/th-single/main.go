// Command th-single runs one TH instance with a single PSO configuration on
// the Rosenbrock function.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pfperroni/treasure-hunt-framework/internal/config"
	"github.com/pfperroni/treasure-hunt-framework/internal/engine"
	"github.com/pfperroni/treasure-hunt-framework/internal/logging"
	"github.com/pfperroni/treasure-hunt-framework/internal/objective"
	"github.com/pfperroni/treasure-hunt-framework/internal/search"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
	"github.com/pfperroni/treasure-hunt-framework/internal/topology"
	"github.com/pfperroni/treasure-hunt-framework/internal/transport"
)

func main() {
	var (
		nDims      = flag.Int("dims", 1000, "number of dimensions")
		lo         = flag.Float64("lo", -20, "lower bound of every dimension")
		hi         = flag.Float64("hi", 20, "upper bound of every dimension")
		maxSeconds = flag.Int64("max-seconds", 100, "wall-clock budget in seconds (0 = unlimited)")
		maxEvals   = flag.Int64("max-evals", 0, "evaluation budget (0 = unlimited)")
		serveHTTP  = flag.Bool("http", false, "expose /healthz and /metrics while running")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run", uuid.NewString()))

	if *serveHTTP {
		go serveStatus(cfg.HTTP.Port, logger)
	}

	tree, err := topology.NewTree(1)
	if err != nil {
		logger.Fatal("building tree", zap.Error(err))
	}
	if _, err := tree.AddRootNode(0); err != nil {
		logger.Fatal("building tree", zap.Error(err))
	}

	searchSpace, err := space.Uniform(*nDims, *lo, *hi)
	if err != nil {
		logger.Fatal("building search space", zap.Error(err))
	}

	network, err := transport.NewNetwork(1)
	if err != nil {
		logger.Fatal("building network", zap.Error(err))
	}
	bus, err := network.Bus(0)
	if err != nil {
		logger.Fatal("building bus", zap.Error(err))
	}

	th, err := engine.NewBuilder().
		SetSettings(cfg).
		SetLogger(logger).
		SetTree(tree).
		SetBus(bus).
		SetSearchSpace(searchSpace).
		SetFitnessPolicy(objective.NewRosenbrock()).
		SetAlgorithmSelectionPolicy(search.SingleSelection{}).
		AddSearchAlgorithm(search.NewPSO(1.1, 0.9, 0.9, 12)).
		SetBestListSize(2).
		SetMaxTimeSeconds(*maxSeconds).
		SetMaxNumberEvaluations(*maxEvals).
		Build()
	if err != nil {
		logger.Fatal("building TH instance", zap.Error(err))
	}

	if err := th.Run(); err != nil {
		logger.Fatal("running TH instance", zap.Error(err))
	}

	best := th.BestSolution()
	fmt.Printf("[%d] Best Result: Num.Evals = %d, Fitness = %g\n", th.ID(), th.NEvals(), best.Fitness().First())
	if list := th.BestList(); list != nil {
		for i := 0; i < list.Size(); i++ {
			if s := list.At(i); s != nil {
				fmt.Printf("BestList[%d]: fitness = %g\n", i, s.Fitness().First())
			}
		}
	}
}

func serveStatus(port int, logger *zap.Logger) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), r); err != nil {
		logger.Warn("status endpoint stopped", zap.Error(err))
	}
}
