package config

// SiteConfig holds crawl settings for one host.
type SiteConfig struct {
	// BasePath overrides the path prefix links must start with.
	BasePath string `yaml:"basePath,omitempty"`

	// Workers overrides the pool size. A pointer so that 0 (sequential)
	// can be set explicitly.
	Workers *int `yaml:"workers,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Cookie is an HTTP cookie sent with every request to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .sitegraph configuration file.
type File struct {
	// Sites maps a host (e.g. "en.wikipedia.org") to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for host: Defaults overlaid with the
// host's entry.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.BasePath != "" {
		result.BasePath = site.BasePath
	}
	if site.Workers != nil {
		result.Workers = site.Workers
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	return result
}
