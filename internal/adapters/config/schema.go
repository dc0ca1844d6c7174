package config

// manifestFile mirrors the kiln.yaml structure on disk.
type manifestFile struct {
	Package      packageDTO               `yaml:"package"`
	Toolchain    toolchainDTO             `yaml:"toolchain"`
	Dependencies map[string]dependencyDTO `yaml:"dependencies"`
	Plugins      map[string]pluginDTO     `yaml:"plugins"`
}

type packageDTO struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Version    string `yaml:"version"`
	Entrypoint string `yaml:"entrypoint"`
}

type toolchainDTO struct {
	Kotlin string `yaml:"kotlin"`
	Detekt string `yaml:"detekt"`
}

// dependencyDTO accepts either the scalar shorthand ("name: 1.2.3") or the
// mapping form with an explicit path or version.
type dependencyDTO struct {
	Path    string `yaml:"path"`
	Version string `yaml:"version"`
}

func (d *dependencyDTO) UnmarshalYAML(unmarshal func(any) error) error {
	var version string
	if err := unmarshal(&version); err == nil {
		d.Version = version
		return nil
	}

	type plain dependencyDTO
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*d = dependencyDTO(p)
	return nil
}

type pluginDTO struct {
	Version string   `yaml:"version"`
	Modules []string `yaml:"modules"`
}
