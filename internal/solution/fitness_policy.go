package solution

// FitnessPolicy evaluates candidates and totally orders them. Every optimizer
// must use the installed policy for each evaluation and each ordering
// decision.
type FitnessPolicy interface {
	// Apply evaluates the solution, writing its fitness in place.
	Apply(s *Solution)

	// FirstIsBetter orders two solutions. A nil-vs-nil comparison returns
	// false; a non-nil-vs-nil returns true.
	FirstIsBetter(first, second *Solution) bool

	// FirstFitnessIsBetter orders two fitness vectors under the same nil
	// rules.
	FirstFitnessIsBetter(first, second Fitness) bool

	// SetWorstFitness writes the worst sentinel fitness into the solution.
	SetWorstFitness(s *Solution)

	// SetWorstFitnessValue writes the worst sentinel into a fitness vector.
	SetWorstFitnessValue(f Fitness)

	// SetBestFitness writes the best sentinel fitness into the solution.
	SetBestFitness(s *Solution)

	// SetBestFitnessValue writes the best sentinel into a fitness vector.
	SetBestFitnessValue(f Fitness)

	// MinEstimatedFitnessValue returns the minimum estimated headline
	// fitness, used by the convergence controller.
	MinEstimatedFitnessValue() float64
}
