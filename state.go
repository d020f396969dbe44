package dynbond

// State is the stage an Updater is currently in.
type State int32

const (
	StateIdle State = iota
	StateGeometryRefresh
	StateTreeBuild
	StateTraverse
	StateFilter
	StatePublish
)

var stateNames = []string{
	"IDLE", "GEOMETRY_REFRESH", "TREE_BUILD", "TRAVERSE", "FILTER", "PUBLISH",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) { return "UNKNOWN" }
	return stateNames[s]
}
