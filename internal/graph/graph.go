package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kitamorio/galley/internal/model"
)

// Graph is an immutable, validated view of the prerequisite relation
// between recipes. It is safe for concurrent read access.
type Graph struct {
	// needs maps recipe name to its direct prerequisites, each slice
	// sorted for deterministic traversal.
	needs map[string][]string
}

// New builds a Graph from the full recipe set and validates it.
//
// Validation rejects:
//   - prerequisites referencing unknown recipes
//   - self-loops and duplicate prerequisite entries
//   - any cycle, direct or indirect (reported with the cycle path)
//
// The loader already checks unknown references and self-loops per recipe;
// the graph defends against them anyway because it is also constructed
// in tests and future callers may not go through the loader.
func New(recipes map[string]*model.Recipe) (*Graph, error) {
	needs := make(map[string][]string, len(recipes))
	for name, r := range recipes {
		deps := append([]string(nil), r.Needs...)
		sort.Strings(deps)
		for i, dep := range deps {
			if i > 0 && dep == deps[i-1] {
				return nil, model.NewCLIError(model.ExitRecipeFileError,
					fmt.Sprintf("recipe %q lists prerequisite %q more than once", name, dep))
			}
			if dep == name {
				return nil, model.NewCLIError(model.ExitDependencyCycle,
					fmt.Sprintf("recipe %q lists itself as a prerequisite", name))
			}
			if _, ok := recipes[dep]; !ok {
				return nil, model.NewCLIError(model.ExitRecipeFileError,
					fmt.Sprintf("recipe %q needs unknown recipe %q", name, dep))
			}
		}
		needs[name] = deps
	}

	g := &Graph{needs: needs}
	if cycle := g.findCycle(); cycle != nil {
		return nil, model.NewCLIError(model.ExitDependencyCycle,
			fmt.Sprintf("prerequisite cycle: %s", strings.Join(cycle, " -> ")))
	}
	return g, nil
}

// Needs returns the direct prerequisites of the named recipe, sorted.
func (g *Graph) Needs(name string) []string {
	return g.needs[name]
}

// Order returns a deterministic dependencies-first execution order
// covering the target recipes and their transitive prerequisites.
//
// Determinism: targets and prerequisite lists are visited in sorted
// order, so the same file and targets always yield the same plan. A
// recipe reachable from several targets appears exactly once.
func (g *Graph) Order(targets ...string) ([]string, error) {
	sortedTargets := append([]string(nil), targets...)
	sort.Strings(sortedTargets)

	var order []string
	visited := make(map[string]bool, len(g.needs))

	// Recursive DFS: a recipe is appended only after all of its
	// prerequisites have been visited, so the order comes out
	// dependencies-first.
	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if _, ok := g.needs[name]; !ok {
			return model.NewCLIError(model.ExitRecipeNotFound,
				fmt.Sprintf("recipe %q not found", name))
		}
		visited[name] = true
		for _, dep := range g.needs[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		order = append(order, name)
		return nil
	}

	for _, target := range sortedTargets {
		if err := visit(target); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// findCycle detects a prerequisite cycle and returns its path
// (e.g., ["a", "b", "a"]), or nil if the graph is acyclic.
//
// Standard three-color DFS: white = unvisited, gray = on the current
// path, black = fully explored. Hitting a gray node closes a cycle.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.needs))

	names := make([]string, 0, len(g.needs))
	for name := range g.needs {
		names = append(names, name)
	}
	sort.Strings(names)

	var path []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		path = append(path, name)

		for _, dep := range g.needs[name] {
			switch color[dep] {
			case gray:
				// Found the back edge; slice the path from the first
				// occurrence of dep and close the loop.
				for i, n := range path {
					if n == dep {
						cycle = append(append([]string(nil), path[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, name := range names {
		if color[name] == white && visit(name) {
			return cycle
		}
	}
	return nil
}
