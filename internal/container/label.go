package container

// Docker labels applied to every container galley creates. Labels are
// the only state galley keeps about its containers — discovery for
// "galley prune" is a label-filtered ContainerList, not a state file.
const (
	// LabelManagedBy marks a container as created by galley.
	LabelManagedBy = "galley.managed-by"

	// ManagedByValue is the value of LabelManagedBy.
	ManagedByValue = "galley"

	// LabelRecipe records which recipe the container ran.
	LabelRecipe = "galley.recipe"

	// LabelWorkdir records the host directory that was bind-mounted.
	LabelWorkdir = "galley.workdir"
)

// BuildLabels constructs the label set for a recipe container.
func BuildLabels(recipeName, workdir string) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelRecipe:    recipeName,
		LabelWorkdir:   workdir,
	}
}

// IsManaged reports whether the label set belongs to a galley container.
func IsManaged(labels map[string]string) bool {
	return labels[LabelManagedBy] == ManagedByValue
}

// RecipeName extracts the recipe name from a label set. Empty if the
// label is missing.
func RecipeName(labels map[string]string) string {
	return labels[LabelRecipe]
}
