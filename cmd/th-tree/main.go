// Command th-tree runs a tree of TH instances with mixed PSO and
// hill-climbing configurations on the Rosenbrock function. By default every
// node runs as a goroutine over the in-process bus; the hub/dial flags split
// the tree across processes over websockets.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pfperroni/treasure-hunt-framework/internal/config"
	"github.com/pfperroni/treasure-hunt-framework/internal/engine"
	"github.com/pfperroni/treasure-hunt-framework/internal/logging"
	"github.com/pfperroni/treasure-hunt-framework/internal/objective"
	"github.com/pfperroni/treasure-hunt-framework/internal/region"
	"github.com/pfperroni/treasure-hunt-framework/internal/search"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
	"github.com/pfperroni/treasure-hunt-framework/internal/topology"
	"github.com/pfperroni/treasure-hunt-framework/internal/transport"
)

func main() {
	var (
		nDims        = flag.Int("dims", 1000, "number of dimensions")
		lo           = flag.Float64("lo", -20, "lower bound of every dimension")
		hi           = flag.Float64("hi", 20, "upper bound of every dimension")
		maxSeconds   = flag.Int64("max-seconds", 100, "wall-clock budget in seconds (0 = unlimited)")
		topologyFile = flag.String("topology", "", "YAML topology file (default: 7-node balanced binary tree)")
		hubAddr      = flag.String("hub", "", "serve the websocket hub on this address instead of running nodes")
		dialURL      = flag.String("dial", "", "connect this process's node to a hub (requires -node)")
		nodeID       = flag.Int("node", 0, "node id when dialing a hub")
		serveHTTP    = flag.Bool("http", false, "expose /healthz and /metrics while running")
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

	newTree := defaultTree
	if *topologyFile != "" {
		newTree = func() (*topology.Tree, error) { return topology.LoadFile(*topologyFile) }
	}
	sizeTree, err := newTree()
	if err != nil {
		logger.Fatal("building tree", zap.Error(err))
	}
	size := sizeTree.Size()

	if *hubAddr != "" {
		hub, err := transport.NewHub(size)
		if err != nil {
			logger.Fatal("building hub", zap.Error(err))
		}
		logger.Info("serving hub", zap.String("addr", *hubAddr), zap.String("session", hub.Session()))
		if err := http.ListenAndServe(*hubAddr, hub); err != nil {
			logger.Fatal("hub stopped", zap.Error(err))
		}
		return
	}

	if *serveHTTP {
		go serveStatus(cfg.HTTP.Port, logger)
	}

	searchSpace, err := space.Uniform(*nDims, *lo, *hi)
	if err != nil {
		logger.Fatal("building search space", zap.Error(err))
	}

	if *dialURL != "" {
		bus, err := transport.DialWS(*dialURL, *nodeID, size)
		if err != nil {
			logger.Fatal("dialing hub", zap.Error(err))
		}
		runNode(cfg, logger, newTree, searchSpace, bus, *maxSeconds)
		return
	}

	network, err := transport.NewNetwork(size)
	if err != nil {
		logger.Fatal("building network", zap.Error(err))
	}
	var wg sync.WaitGroup
	for id := 0; id < size; id++ {
		bus, err := network.Bus(id)
		if err != nil {
			logger.Fatal("building bus", zap.Error(err))
		}
		wg.Add(1)
		go func(bus transport.Bus) {
			defer wg.Done()
			runNode(cfg, logger, newTree, searchSpace, bus, *maxSeconds)
		}(bus)
	}
	wg.Wait()
}

// defaultTree is the 7-node balanced binary tree of the reference example.
func defaultTree() (*topology.Tree, error) {
	tree, err := topology.NewTree(7)
	if err != nil {
		return nil, err
	}
	if _, err := tree.AddRootNode(0); err != nil {
		return nil, err
	}
	for _, n := range []struct{ id, parent int }{
		{1, 0}, {2, 0}, {3, 1}, {4, 1}, {5, 2}, {6, 2},
	} {
		if _, err := tree.AddNode(n.id, n.parent); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func runNode(cfg *config.Settings, logger *zap.Logger, newTree func() (*topology.Tree, error),
	searchSpace *space.SearchSpace, bus transport.Bus, maxSeconds int64) {
	// Each engine owns its tree instance, so the topology is rebuilt per
	// node.
	tree, err := newTree()
	if err != nil {
		logger.Fatal("building tree", zap.Error(err))
	}
	partitioner, err := region.NewGroupSelection(1, 2)
	if err != nil {
		logger.Fatal("building region partitioner", zap.Error(err))
	}

	th, err := engine.NewBuilder().
		SetSettings(cfg).
		SetLogger(logger).
		SetTree(tree).
		SetBus(bus).
		SetSearchSpace(searchSpace).
		SetFitnessPolicy(objective.NewRosenbrock()).
		SetRegionSelectionPolicy(partitioner).
		AddSearchAlgorithm(search.NewPSO(1.1, 0.9, 0.9, 12)).
		AddSearchAlgorithm(search.NewHillClimbing(1, 0.2, 12)).
		AddSearchAlgorithm(search.NewPSO(0.9, 0.7, 0.7, 12)).
		AddSearchAlgorithm(search.NewHillClimbing(0.5, 0.1, 12)).
		AddSearchAlgorithm(search.NewPSO(0.5, 0.2, 0.2, 12)).
		AddSearchAlgorithm(search.NewHillClimbing(0.2, 0.05, 12)).
		SetBestListSize(2).
		SetMaxTimeSeconds(maxSeconds).
		Build()
	if err != nil {
		logger.Fatal("building TH instance", zap.Error(err))
	}

	if err := th.Run(); err != nil {
		logger.Fatal("running TH instance", zap.Error(err))
	}

	best := th.BestSolution()
	fmt.Printf("[%d] Best Result: Num.Evals = %d, Fitness = %g\n", th.ID(), th.NEvals(), best.Fitness().First())
	if th.ID() == tree.Root().ID() {
		if list := th.BestList(); list != nil {
			for i := 0; i < list.Size(); i++ {
				if s := list.At(i); s != nil {
					fmt.Printf("BestList[%d]: fitness = %g\n", i, s.Fitness().First())
				}
			}
		}
	}
	_ = bus.Finalize()
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
