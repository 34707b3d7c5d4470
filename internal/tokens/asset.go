package tokens

import "fmt"

// Asset names one of the two ledgers.
type Asset string

const (
	AssetOld Asset = "old"
	AssetNew Asset = "new"
)

// Scale returns the asset's decimal scale.
func (a Asset) Scale() Scale {
	switch a {
	case AssetOld:
		return ScaleOld
	case AssetNew:
		return ScaleNew
	default:
		panic(fmt.Sprintf("tokens: unknown asset %q", string(a)))
	}
}

// Valid reports whether a is a known asset.
func (a Asset) Valid() bool {
	return a == AssetOld || a == AssetNew
}
