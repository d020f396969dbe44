package main
import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/dynbond"
	"github.com/phil-mansfield/dynbond/bond"
	"github.com/phil-mansfield/dynbond/io"
)

// FileGroup contains utility files for logging and writing profiles to.
type FileGroup struct {
	log, prof *os.File
}

// Close closes the files inside FileGroup.
func (fg *FileGroup) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil { log.Fatal(err.Error()) }
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil { log.Fatal(err.Error()) }
	}
}

func main() {
	var (
		dynamicBonds, exampleConfig string
		threads int
	)

	vars := map[string]*string{
		"DynamicBonds": &dynamicBonds,
		"ExampleConfig": &exampleConfig,
	}

	flag.IntVar(
		&threads, "Threads", runtime.NumCPU(),
		"Number of threads used. Default is the number of logical cores.",
	)
	flag.StringVar(
		&dynamicBonds, "DynamicBonds", "",
		"Forms bonds between nearby particles as specified by the given " +
			"configuration file.",
	)
	flag.StringVar(
		&exampleConfig,
		"ExampleConfig", "", "Prints an example configuration file of the " +
			"specified type to stdout. The only accepted argument is " +
			"'DynamicBonds'.",
	)

	flag.Parse()

	if threads < 1 { log.Fatalf("Threads must be positive, not %d.", threads) }
	runtime.GOMAXPROCS(threads)

	modeName, err := getModeName(vars)
	if err != nil { log.Fatal(err.Error()) }

	switch modeName {
	case "DynamicBonds":
		con, err := io.ReadDynamicBondsConfig(dynamicBonds)
		if err != nil { log.Fatal(err.Error()) }
		dynamicBondsMain(con, threads)
	case "ExampleConfig":
		switch exampleConfig {
		case "DynamicBonds":
			fmt.Println(io.ExampleDynamicBondsFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. The only recognized " +
					"argument is 'DynamicBonds'.",
			)
		}
	default:
		panic("Impossible")
	}
}

// getModeName returns the name of the mode and fails with a descriptive error
// if the user provided less or more than one mode flag.
func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" { setNames = append(setNames, name) }
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but dynbond only accepts " +
				"one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

// dynamicBondsMain runs the updates described by con and writes every bond
// they formed to con.Output.
func dynamicBondsMain(con *io.DynamicBondsConfig, threads int) {
	fg := setupIO(con)
	defer fg.Close()

	sys := readSystem(con)
	u, err := dynbond.NewUpdater(
		sys,
		sys.TagsOfType(toTypes(con.Group1Type)...),
		sys.TagsOfType(toTypes(con.Group2Type)...),
		dynbond.Params{
			RCut: con.RCut,
			Probability: con.Probability,
			BondType: uint32(con.BondType),
			MaxBondsGroup1: con.MaxBondsGroup1,
			MaxBondsGroup2: con.MaxBondsGroup2,
			Seed: uint32(con.Seed),
			Period: uint64(con.Period),
		},
	)
	if err != nil { log.Fatal(err.Error()) }

	u.Log(con.ValidLogFile())
	if err = u.SetMaxWorkers(threads); err != nil { log.Fatal(err.Error()) }
	u.SetAutotunerParams(con.Autotune, con.AutotunePeriod)

	newBonds := []bond.Bond{}
	steps := make([]float64, 0, con.Updates)
	counts := make([]float64, 0, con.Updates)

	step := firstUpdate(uint64(con.Timestep), uint64(con.Period))
	for i := 0; i < con.Updates; i++ {
		rep, err := u.Update(step)
		if err != nil { log.Fatal(err.Error()) }

		newBonds = append(newBonds, rep.Bonds...)
		steps = append(steps, float64(step))
		counts = append(counts, float64(rep.Accepted))
		step += uint64(con.Period)
	}

	if err = io.WriteBonds(con.Output, newBonds); err != nil {
		log.Fatal(err.Error())
	}

	if con.ValidPlotFile() { plotBonds(con.PlotFile, steps, counts) }
}

// readSystem reads the particle and bond tables named by con.
func readSystem(con *io.DynamicBondsConfig) *dynbond.MemorySystem {
	p, err := io.ReadParticles(con.Particles)
	if err != nil { log.Fatal(err.Error()) }

	sys, err := dynbond.NewMemorySystem(con.Box(), p.Tags, p.Pos, con.BondTypes)
	if err != nil { log.Fatal(err.Error()) }
	if err = sys.SetTypes(p.Types); err != nil { log.Fatal(err.Error()) }
	sys.SetGhostLayerWidth(con.GhostWidth)

	if con.ValidBonds() {
		bonds, err := io.ReadBonds(con.Bonds)
		if err != nil { log.Fatal(err.Error()) }
		if err = sys.AddBonds(bonds); err != nil { log.Fatal(err.Error()) }
	}

	log.Printf(
		"Read %d particles and %d bonds.", sys.Len(), len(sys.Bonds()),
	)

	return sys
}

// firstUpdate returns the first multiple of period which is at least step.
func firstUpdate(step, period uint64) uint64 {
	if rem := step % period; rem != 0 { return step + period - rem }
	return step
}

func toTypes(types []int) []uint32 {
	out := make([]uint32, len(types))
	for i := range types { out[i] = uint32(types[i]) }
	return out
}

// setupIO opens the log and profile files requested by con.
func setupIO(con *io.DynamicBondsConfig) *FileGroup {
	var err error
	fg := new(FileGroup)

	// Set up log file.
	if con.ValidLogFile() {
		fg.log, err = os.Create(con.LogFile)
		if err != nil { log.Fatal(err.Error()) }
		log.SetOutput(fg.log)
	}

	// Set up profile file.
	if con.ValidProfileFile() {
		fg.prof, err = os.Create(con.ProfileFile)
		if err != nil { log.Fatal(err.Error()) }
		err = pprof.StartCPUProfile(fg.prof)
		if err != nil { log.Fatal(err.Error()) }
	}

	return fg
}

// plotBonds plots the number of bonds formed at each update.
func plotBonds(fname string, steps, counts []float64) {
	plt.Figure()
	plt.Plot(steps, counts, "k", plt.LW(2))
	plt.XLabel("Timestep", plt.FontSize(16))
	plt.YLabel("New bonds", plt.FontSize(16))
	plt.Title(fmt.Sprintf("%d updates", len(steps)))
	plt.SaveFig(fname)
	plt.Execute()
}
