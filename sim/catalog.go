package sim

// Model ids.
const (
	ModelPoint = "point"
	ModelQuad  = "quad"
)

// Algorithm ids.
const (
	AlgoFlock     = "flock"
	AlgoAlpha     = "flock-alpha"
	AlgoFormation = "formation-ecbf"
	AlgoSafeFlock = "safe-flocking-alpha"
)

// CatalogEntry describes one model or algorithm for host enumeration.
type CatalogEntry struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	DefaultAlgorithm string `json:"defaultAlgorithm,omitempty"`
}

// modelCatalog lists the agent dynamics models. Compatibility is data
// here, not in call sites: the compat map below is the single source.
var modelCatalog = []CatalogEntry{
	{
		ID:               ModelPoint,
		Name:             "Point mass",
		Description:      "First-order point agents driven by acceleration commands.",
		DefaultAlgorithm: AlgoFlock,
	},
	{
		ID:               ModelQuad,
		Name:             "Quadrotor",
		Description:      "Second-order quadrotor-like agents with attitude auxiliary state.",
		DefaultAlgorithm: AlgoFormation,
	},
}

var algorithmCatalog = []CatalogEntry{
	{
		ID:          AlgoFlock,
		Name:        "Reynolds flocking",
		Description: "Cohesion, alignment, and separation with a soft spherical boundary.",
	},
	{
		ID:          AlgoAlpha,
		Name:        "Alpha-lattice flocking",
		Description: "Olfati-Saber gradient flocking toward a regular lattice spacing.",
	},
	{
		ID:          AlgoFormation,
		Name:        "Fixed-time formation + ECBF",
		Description: "Formation tracking with exponential barrier constraints solved per-agent as a QP.",
	},
	{
		ID:          AlgoSafeFlock,
		Name:        "Safe flocking",
		Description: "Alpha-lattice flocking filtered through a CBF-QP with obstacle and inter-agent barriers.",
	},
}

// compat maps each model id to the algorithm ids it may run.
var compat = map[string][]string{
	ModelPoint: {AlgoFlock, AlgoAlpha, AlgoFormation, AlgoSafeFlock},
	ModelQuad:  {AlgoFormation},
}

// AvailableModels returns the model catalog.
func AvailableModels() []CatalogEntry {
	out := make([]CatalogEntry, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}

// AvailableAlgorithms returns the algorithm catalog.
func AvailableAlgorithms() []CatalogEntry {
	out := make([]CatalogEntry, len(algorithmCatalog))
	copy(out, algorithmCatalog)
	return out
}

// AlgorithmsForModel returns the algorithms permitted for a model, or
// ErrUnknownID when the model is not cataloged.
func AlgorithmsForModel(modelID string) ([]CatalogEntry, error) {
	ids, ok := compat[modelID]
	if !ok {
		return nil, ErrUnknownID
	}
	out := make([]CatalogEntry, 0, len(ids))
	for _, id := range ids {
		for _, e := range algorithmCatalog {
			if e.ID == id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func modelEntry(id string) (CatalogEntry, bool) {
	for _, e := range modelCatalog {
		if e.ID == id {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

func algorithmAllowed(modelID, algoID string) bool {
	for _, id := range compat[modelID] {
		if id == algoID {
			return true
		}
	}
	return false
}

func algorithmKnown(id string) bool {
	for _, e := range algorithmCatalog {
		if e.ID == id {
			return true
		}
	}
	return false
}
