// Package orchestrator drives LDPC SNR sweeps and SAT solve campaigns
// against board sessions and persists their results, per SPEC_FULL.md
// §6.9.
package orchestrator

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

// seedFor derives the deterministic seed from the problem index alone,
// per spec.md §4.9.3; together with the family (which picks the
// generator), a given pair reproduces the same CNF on every host.
func seedFor(index int) int64 {
	return int64(42 + index*1000)
}

var numericPairRe = regexp.MustCompile(`(\d+)-(\d+)`)
var trailingNumberRe = regexp.MustCompile(`(\d+)$`)

// GenerateDIMACS produces the CNF text for a benchmark family and problem
// index. The family name's shape selects the generator: "hole*" uses
// pigeonhole, "flat*" uses graph coloring, everything else uses uniform
// random 3-SAT sized from the family's embedded vars-clauses pair (or a
// default when the name carries no usable numbers).
func GenerateDIMACS(family string, index int) string {
	rng := rand.New(rand.NewSource(seedFor(index)))

	switch {
	case strings.HasPrefix(family, "hole"):
		n := parseTrailingNumber(family, 6)
		return pigeonholeDIMACS(family, index, n)
	case strings.HasPrefix(family, "flat"):
		vars, _ := parseNumericPair(family, 30, 60)
		nodes := vars / 3
		if nodes < 2 {
			nodes = 2
		}
		return graphColoringDIMACS(family, index, nodes, 3, rng)
	default:
		vars, clauses := parseNumericPair(family, 20, 91)
		return uniformRandom3SATDIMACS(family, index, vars, clauses, rng)
	}
}

func parseNumericPair(family string, defVars, defClauses int) (int, int) {
	m := numericPairRe.FindStringSubmatch(family)
	if m == nil {
		return defVars, defClauses
	}
	vars, err1 := strconv.Atoi(m[1])
	clauses, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return defVars, defClauses
	}
	return vars, clauses
}

func parseTrailingNumber(family string, def int) int {
	m := trailingNumberRe.FindStringSubmatch(family)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 2 {
		return def
	}
	return n
}

// uniformRandom3SATDIMACS picks 3 distinct variables per clause with
// random polarity, per spec.md §4.9.3.
func uniformRandom3SATDIMACS(family string, index, numVars, numClauses int, rng *rand.Rand) string {
	var b strings.Builder
	fmt.Fprintf(&b, "c %s problem %d\n", family, index)
	fmt.Fprintf(&b, "p cnf %d %d\n", numVars, numClauses)

	for i := 0; i < numClauses; i++ {
		vars := distinctVars(rng, numVars, 3)
		for _, v := range vars {
			lit := v + 1
			if rng.Intn(2) == 0 {
				lit = -lit
			}
			fmt.Fprintf(&b, "%d ", lit)
		}
		b.WriteString("0\n")
	}
	return b.String()
}

func distinctVars(rng *rand.Rand, numVars, count int) []int {
	if count > numVars {
		count = numVars
	}
	picked := make(map[int]bool, count)
	vars := make([]int, 0, count)
	for len(vars) < count {
		v := rng.Intn(numVars)
		if picked[v] {
			continue
		}
		picked[v] = true
		vars = append(vars, v)
	}
	return vars
}

// pigeonholeDIMACS encodes "each of n+1 pigeons occupies some hole" plus
// "no two pigeons share a hole" over n holes, an unsatisfiable instance by
// construction, per spec.md §4.9.3.
func pigeonholeDIMACS(family string, index, holes int) string {
	pigeons := holes + 1
	varOf := func(pigeon, hole int) int { return pigeon*holes + hole + 1 }

	var b strings.Builder
	fmt.Fprintf(&b, "c %s problem %d\n", family, index)

	var clauses strings.Builder
	numClauses := 0

	for p := 0; p < pigeons; p++ {
		for h := 0; h < holes; h++ {
			fmt.Fprintf(&clauses, "%d ", varOf(p, h))
		}
		clauses.WriteString("0\n")
		numClauses++
	}

	for h := 0; h < holes; h++ {
		for p1 := 0; p1 < pigeons; p1++ {
			for p2 := p1 + 1; p2 < pigeons; p2++ {
				fmt.Fprintf(&clauses, "%d %d 0\n", -varOf(p1, h), -varOf(p2, h))
				numClauses++
			}
		}
	}

	fmt.Fprintf(&b, "p cnf %d %d\n", pigeons*holes, numClauses)
	b.WriteString(clauses.String())
	return b.String()
}

// graphColoringDIMACS encodes "at least one color per vertex" + "at most
// one color per vertex" + "endpoints of an edge differ" over a randomly
// generated ring-plus-chords graph, per spec.md §4.9.3.
func graphColoringDIMACS(family string, index, nodes, colors int, rng *rand.Rand) string {
	varOf := func(node, color int) int { return node*colors + color + 1 }

	edges := ringWithChords(rng, nodes)

	var clauses strings.Builder
	numClauses := 0

	for n := 0; n < nodes; n++ {
		for c := 0; c < colors; c++ {
			fmt.Fprintf(&clauses, "%d ", varOf(n, c))
		}
		clauses.WriteString("0\n")
		numClauses++

		for c1 := 0; c1 < colors; c1++ {
			for c2 := c1 + 1; c2 < colors; c2++ {
				fmt.Fprintf(&clauses, "%d %d 0\n", -varOf(n, c1), -varOf(n, c2))
				numClauses++
			}
		}
	}

	for _, e := range edges {
		for c := 0; c < colors; c++ {
			fmt.Fprintf(&clauses, "%d %d 0\n", -varOf(e[0], c), -varOf(e[1], c))
			numClauses++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "c %s problem %d\n", family, index)
	fmt.Fprintf(&b, "p cnf %d %d\n", nodes*colors, numClauses)
	b.WriteString(clauses.String())
	return b.String()
}

func ringWithChords(rng *rand.Rand, nodes int) [][2]int {
	edges := make([][2]int, 0, nodes+nodes/2)
	for n := 0; n < nodes; n++ {
		edges = append(edges, [2]int{n, (n + 1) % nodes})
	}
	for i := 0; i < nodes/2; i++ {
		a := rng.Intn(nodes)
		b := rng.Intn(nodes)
		if a != b {
			edges = append(edges, [2]int{a, b})
		}
	}
	return edges
}
