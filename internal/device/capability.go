package device

import "golang.org/x/sys/cpu"

// hostComputeVersion maps the CPU's vector extensions onto a compute
// capability version so host and GPU devices can share one width policy.
func hostComputeVersion() (major, minor int, features []string) {
	switch {
	case cpu.X86.HasAVX512F:
		major, minor = 8, 0
	case cpu.X86.HasAVX2:
		major, minor = 7, 0
	case cpu.ARM64.HasSVE:
		major, minor = 7, 5
	case cpu.ARM64.HasASIMD:
		major, minor = 6, 0
	case cpu.X86.HasSSE41:
		major, minor = 3, 5
	default:
		major, minor = 1, 0
	}

	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"sse4.1", cpu.X86.HasSSE41},
		{"avx", cpu.X86.HasAVX},
		{"avx2", cpu.X86.HasAVX2},
		{"avx512f", cpu.X86.HasAVX512F},
		{"asimd", cpu.ARM64.HasASIMD},
		{"sve", cpu.ARM64.HasSVE},
	} {
		if f.ok {
			features = append(features, f.name)
		}
	}

	return major, minor, features
}
