package validate

import "github.com/marmos91/assetflow/pkg/asset"

// ForImages returns the image pipeline validators in execution order.
func ForImages() []asset.Validator {
	return []asset.Validator{
		FileSize{},
		ImageFileType{},
		ImageResolution{},
		ImageIntegrity{},
	}
}

// ForModels returns the model pipeline validators in execution order.
func ForModels() []asset.Validator {
	return []asset.Validator{
		FileSize{},
		ModelFileType{},
		MeshLoad{},
		ModelComplexity{},
	}
}
