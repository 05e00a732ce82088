package astro

// Version is the astro release version. Release builds override it with
// -ldflags "-X github.com/rishimeka/astro.Version=v1.2.3".
var Version = "dev"
