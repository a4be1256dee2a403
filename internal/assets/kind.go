package assets

import "fmt"

// Kind classifies a registered asset. Every kind belongs to exactly one Category.
type Kind int

const (
	InputAssembly Kind = iota
	InputManagedAssemblyDirectory
	InputOther
	ToolingAssembly
	ToolingBinary
	ToolingUnixyBinTree
	GeneratedProject
	GeneratedOther
)

var kindNames = [...]string{
	InputAssembly:                 "InputAssembly",
	InputManagedAssemblyDirectory: "InputManagedAssemblyDirectory",
	InputOther:                    "InputOther",
	ToolingAssembly:               "ToolingAssembly",
	ToolingBinary:                 "ToolingBinary",
	ToolingUnixyBinTree:           "ToolingUnixyBinTree",
	GeneratedProject:              "GeneratedProject",
	GeneratedOther:                "GeneratedOther",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText lets kinds appear by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Category is the role partition a kind belongs to.
type Category int

const (
	CategoryInput Category = iota
	CategoryTooling
	CategoryGenerated
)

func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryTooling:
		return "tooling"
	case CategoryGenerated:
		return "generated"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Root folder names. Generated assets live at the archive root.
const (
	InputRoot   = "input"
	ToolingRoot = "tools"
	// OutputRoot is never archived; relocated task outputs are created under it at replay time.
	OutputRoot = "output"
)

// Category returns the category of k.
func (k Kind) Category() Category {
	switch k {
	case InputAssembly, InputManagedAssemblyDirectory, InputOther:
		return CategoryInput
	case ToolingAssembly, ToolingBinary, ToolingUnixyBinTree:
		return CategoryTooling
	default:
		return CategoryGenerated
	}
}

// root returns the canonical top-level folder for k, or "" for generated kinds.
func (k Kind) root() string {
	switch k.Category() {
	case CategoryInput:
		return InputRoot
	case CategoryTooling:
		return ToolingRoot
	default:
		return ""
	}
}

type archiveMethod int

const (
	archiveFile archiveMethod = iota
	archiveFilteredDir
	archiveTree
	archiveRender
)

func (k Kind) archiveMethod() archiveMethod {
	switch k {
	case InputManagedAssemblyDirectory:
		return archiveFilteredDir
	case ToolingUnixyBinTree:
		return archiveTree
	case GeneratedProject, GeneratedOther:
		return archiveRender
	default:
		return archiveFile
	}
}
