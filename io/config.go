package io

import (
	"fmt"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/dynbond/geom"
)

const ExampleDynamicBondsFile = `[DynamicBonds]

#######################
# Required Parameters #
#######################

# Whitespace-separated table of particles with the columns
#     tag x y z type
# Tags must be unique non-negative integers.
Particles = path/to/particles.txt

# File that newly formed bonds are written to. Files ending in .bin are
# written in the binary bond format. Everything else is written as a text
# table with the columns
#     tag1 tag2 type
Output = path/to/new_bonds.txt

# Edge lengths of the simulation box.
Lx = 10
Ly = 10
Lz = 10

# Cutoff radius. Pairs at exactly RCut are considered in range. RCut can be
# at most half of the box width along any periodic axis.
RCut = 1.0

# Particle types in each group. Bonds are only formed between a group 1
# particle and a group 2 particle. Each variable can be given several times,
# and the two groups can overlap.
Group1Type = 0
Group2Type = 1

#######################
# Optional Parameters #
#######################

# File of existing bonds, in the same format as Output: binary if it ends
# in .bin and a text table otherwise. Existing bonds count towards the caps and are never formed twice.
# Bonds = path/to/bonds.txt

# Tilt factors of a triclinic box. Default is 0.
# XY = 0
# XZ = 0
# YZ = 0

# Periodicity of each axis. Default is true. Ghost particles along
# non-periodic axes may sit up to GhostWidth outside the box.
# PeriodicX = true
# PeriodicY = true
# PeriodicZ = true
# GhostWidth = 0

# Set to 2 for two dimensional systems, where z is ignored. Default is 3.
# Dimensions = 3

# Set to true if the box spans [-L/2, L/2) instead of [0, L).
# Centered = false

# Probability that an eligible pair forms a bond. Default is 1.
# Probability = 1.0

# Type given to new bonds, and the number of registered bond types.
# Defaults are 0 and 1.
# BondType = 0
# BondTypes = 1

# Maximum total number of bonds a particle in each group may have, existing
# bonds included. A particle in both groups gets the smaller cap. Default is 1.
# MaxBondsGroup1 = 1
# MaxBondsGroup2 = 1

# Random seed. Results depend only on Seed, Timestep and the input files.
# Seed = 0

# Updates are run at the first multiple of Period at or after Timestep and
# every Period timesteps after that. Defaults are 0, 1 and 1.
# Timestep = 0
# Period = 1
# Updates = 1

# Autotuning of worker counts. It never changes results.
# Autotune = true
# AutotunePeriod = 100

# Output files which are useful for profiling and debugging. PlotFile is a
# plot of the number of bonds formed in each update.
# ProfileFile = prof.out
# LogFile = log.out
# PlotFile = bonds.png`

type DynamicBondsConfig struct {
	// Required
	Particles, Output string
	Lx, Ly, Lz float64
	RCut float64
	Group1Type, Group2Type []int

	// Optional
	Bonds string
	XY, XZ, YZ float64
	PeriodicX, PeriodicY, PeriodicZ bool
	GhostWidth float64
	Dimensions int
	Centered bool

	Probability float64
	BondType, BondTypes int
	MaxBondsGroup1, MaxBondsGroup2 int
	Seed int64
	Timestep, Period int64
	Updates int

	Autotune bool
	AutotunePeriod int

	LogFile, ProfileFile, PlotFile string
}

type DynamicBondsWrapper struct {
	DynamicBonds DynamicBondsConfig
}

func DefaultDynamicBondsWrapper() *DynamicBondsWrapper {
	con := DynamicBondsConfig{}
	con.PeriodicX, con.PeriodicY, con.PeriodicZ = true, true, true
	con.Dimensions = 3
	con.Probability = 1
	con.BondTypes = 1
	con.MaxBondsGroup1, con.MaxBondsGroup2 = 1, 1
	con.Period = 1
	con.Updates = 1
	con.Autotune = true
	con.AutotunePeriod = 100
	return &DynamicBondsWrapper{con}
}

func (con *DynamicBondsConfig) ValidParticles() bool {
	return con.Particles != ""
}
func (con *DynamicBondsConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *DynamicBondsConfig) ValidBonds() bool {
	return con.Bonds != ""
}
func (con *DynamicBondsConfig) ValidL() bool {
	if con.Dimensions == 2 { return con.Lx > 0 && con.Ly > 0 }
	return con.Lx > 0 && con.Ly > 0 && con.Lz > 0
}
func (con *DynamicBondsConfig) ValidRCut() bool {
	return con.RCut > 0
}
func (con *DynamicBondsConfig) ValidGroup1Type() bool {
	return validTypes(con.Group1Type)
}
func (con *DynamicBondsConfig) ValidGroup2Type() bool {
	return validTypes(con.Group2Type)
}
func (con *DynamicBondsConfig) ValidGhostWidth() bool {
	return con.GhostWidth >= 0
}
func (con *DynamicBondsConfig) ValidDimensions() bool {
	return con.Dimensions == 2 || con.Dimensions == 3
}
func (con *DynamicBondsConfig) ValidProbability() bool {
	return con.Probability >= 0 && con.Probability <= 1
}
func (con *DynamicBondsConfig) ValidBondType() bool {
	return con.BondType >= 0 && con.BondType < con.BondTypes
}
func (con *DynamicBondsConfig) ValidMaxBonds() bool {
	return con.MaxBondsGroup1 >= 0 && con.MaxBondsGroup2 >= 0
}
func (con *DynamicBondsConfig) ValidSeed() bool {
	return con.Seed >= 0 && con.Seed <= 1<<32 - 1
}
func (con *DynamicBondsConfig) ValidTimestep() bool {
	return con.Timestep >= 0
}
func (con *DynamicBondsConfig) ValidPeriod() bool {
	return con.Period > 0
}
func (con *DynamicBondsConfig) ValidUpdates() bool {
	return con.Updates >= 0
}
func (con *DynamicBondsConfig) ValidAutotunePeriod() bool {
	return con.AutotunePeriod > 0
}
func (con *DynamicBondsConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *DynamicBondsConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}
func (con *DynamicBondsConfig) ValidPlotFile() bool {
	return con.PlotFile != ""
}

func validTypes(types []int) bool {
	if len(types) == 0 { return false }
	for _, t := range types {
		if t < 0 { return false }
	}
	return true
}

// CheckInit returns an error describing the first invalid required parameter,
// if any.
func (con *DynamicBondsConfig) CheckInit() error {
	switch {
	case !con.ValidParticles():
		return fmt.Errorf("Need to specify a Particles file.")
	case !con.ValidOutput():
		return fmt.Errorf("Need to specify an Output file.")
	case !con.ValidDimensions():
		return fmt.Errorf(
			"Dimensions must be 2 or 3, but is %d.", con.Dimensions,
		)
	case !con.ValidL():
		return fmt.Errorf(
			"Box widths must be positive, but are (%g, %g, %g).",
			con.Lx, con.Ly, con.Lz,
		)
	case !con.ValidGhostWidth():
		return fmt.Errorf(
			"GhostWidth must be non-negative, but is %g.", con.GhostWidth,
		)
	case !con.ValidRCut():
		return fmt.Errorf("RCut must be positive, but is %g.", con.RCut)
	case !con.ValidGroup1Type():
		return fmt.Errorf(
			"Need to specify at least one non-negative Group1Type.",
		)
	case !con.ValidGroup2Type():
		return fmt.Errorf(
			"Need to specify at least one non-negative Group2Type.",
		)
	case !con.ValidProbability():
		return fmt.Errorf(
			"Probability must be in [0, 1], but is %g.", con.Probability,
		)
	case !con.ValidBondType():
		return fmt.Errorf(
			"BondType must be in [0, %d), but is %d.",
			con.BondTypes, con.BondType,
		)
	case !con.ValidMaxBonds():
		return fmt.Errorf(
			"MaxBondsGroup1 and MaxBondsGroup2 must be non-negative, " +
				"but are %d and %d.", con.MaxBondsGroup1, con.MaxBondsGroup2,
		)
	case !con.ValidSeed():
		return fmt.Errorf(
			"Seed must fit in an unsigned 32-bit integer, but is %d.", con.Seed,
		)
	case !con.ValidTimestep():
		return fmt.Errorf(
			"Timestep must be non-negative, but is %d.", con.Timestep,
		)
	case !con.ValidPeriod():
		return fmt.Errorf("Period must be positive, but is %d.", con.Period)
	case !con.ValidUpdates():
		return fmt.Errorf(
			"Updates must be non-negative, but is %d.", con.Updates,
		)
	case !con.ValidAutotunePeriod():
		return fmt.Errorf(
			"AutotunePeriod must be positive, but is %d.", con.AutotunePeriod,
		)
	}
	return nil
}

// Box returns the simulation box described by con.
func (con *DynamicBondsConfig) Box() geom.Box {
	L := geom.Vec{con.Lx, con.Ly, con.Lz}
	if con.Dimensions == 2 && L[2] <= 0 { L[2] = 1 }

	lo := geom.Vec{}
	if con.Centered { lo = L.Scale(-0.5) }

	box := geom.NewBox(lo, lo.Add(L))
	box.XY, box.XZ, box.YZ = con.XY, con.XZ, con.YZ
	box.Periodic = [3]bool{con.PeriodicX, con.PeriodicY, con.PeriodicZ}
	box.Dimensions = con.Dimensions
	return box
}

// ReadDynamicBondsConfig reads and checks a [DynamicBonds] config file.
func ReadDynamicBondsConfig(fname string) (*DynamicBondsConfig, error) {
	wrap := DefaultDynamicBondsWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil { return nil, err }
	if err := wrap.DynamicBonds.CheckInit(); err != nil { return nil, err }
	return &wrap.DynamicBonds, nil
}

// ParseDynamicBondsConfig is identical to ReadDynamicBondsConfig, but reads
// the config from a string.
func ParseDynamicBondsConfig(text string) (*DynamicBondsConfig, error) {
	wrap := DefaultDynamicBondsWrapper()
	if err := gcfg.ReadStringInto(wrap, text); err != nil { return nil, err }
	if err := wrap.DynamicBonds.CheckInit(); err != nil { return nil, err }
	return &wrap.DynamicBonds, nil
}
