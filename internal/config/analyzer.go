package config

// AnalyzerProfile configures one named tokenization profile.
type AnalyzerProfile struct {
	EnableStemming bool     `yaml:"enable_stemming"`
	KeepNumbers    bool     `yaml:"keep_numbers"`
	Stopwords      []string `yaml:"stopwords"`
	SplitFilenames bool     `yaml:"split_filenames"`
}

// AnalyzerConfig configures the text analyzer's profiles.
type AnalyzerConfig struct {
	DefaultProfile string                     `yaml:"default_profile"`
	Profiles       map[string]AnalyzerProfile `yaml:"profiles"`
}

// Profile looks up a named profile, falling back to DefaultProfile.
func (a AnalyzerConfig) Profile(name string) (AnalyzerProfile, bool) {
	if name == "" {
		name = a.DefaultProfile
	}
	p, ok := a.Profiles[name]
	return p, ok
}
