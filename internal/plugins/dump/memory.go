package dump

import (
	"bufio"
	"context"
	"math"
	"strconv"
	"strings"
)

// tier maps a system memory ceiling to the reservation it needs, in MB.
type tier struct {
	upTo    float64
	reserve int64
}

// table is an ordered list of tiers; the first ceiling not below the
// system memory wins.
type table []tier

func (t table) lookup(mem float64) (int64, bool) {
	for _, tr := range t {
		if mem <= tr.upTo {
			return tr.reserve, true
		}
	}
	return 0, false
}

// Capture kernel reservations, keyed by system memory in MB.
var (
	kdumpDefaultTable = table{
		{2048, 128}, {4096, 320}, {32768, 512}, {65536, 1024}, {131072, 2048},
		{1048576, 8192}, {8388608, 16384}, {16777216, 32768}, {math.MaxFloat64, 65536},
	}
	kdumpRHELTable = table{
		{4096, 384}, {16384, 512}, {65536, 1024}, {131072, 2048}, {math.MaxFloat64, 4096},
	}
	kdumpSUSETable = table{
		{32768, 512}, {65536, 1024}, {131072, 2048}, {1048576, 4096}, {2097152, 6144},
		{4194304, 12288}, {8388608, 20480}, {16777216, 32768}, {math.MaxFloat64, 65536},
	}
)

// fadumpTable is keyed by system memory in GB.
var fadumpTable = table{
	{4, 0}, {64, 1024}, {128, 2048}, {1024, 4096}, {2048, 6144}, {4096, 12288},
	{8192, 20480}, {16384, 36864}, {32786, 65536}, {65536, 131072}, {math.MaxFloat64, 184320},
}

const mb = 1024 * 1024

// recommendScript asks kdump-utils for the architecture's recommended
// crashkernel size.
const recommendScript = ". /lib/kdump/kdump-lib.sh; kdump_get_arch_recommend_size"

// recommendedSize runs the kdump-utils helper and returns its
// recommendation in MB.
func (d *dumper) recommendedSize(ctx context.Context) (int64, bool) {
	res, err := d.env.Host.Run(ctx, "bash", "-c", recommendScript)
	if err != nil || !res.OK() {
		return 0, false
	}
	return parseSize(strings.TrimSpace(res.Stdout))
}

// parseSize parses sizes such as "512M", "2G" or "1T" into MB. A bare
// number is taken as MB.
func parseSize(s string) (int64, bool) {
	if len(s) < 2 {
		return 0, false
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(s[end:min(end+1, len(s))]) {
	case "G":
		n *= 1024
	case "T":
		n *= 1024 * 1024
	}
	return n, true
}

// regionSize sums the sizes of the regions listed in the debugfs
// fadump_region file, in bytes.
func regionSize(content string, warn func(region string)) (int64, bool) {
	var total int64
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		region := strings.TrimSpace(sc.Text())
		if region == "" {
			continue
		}
		var size string
		switch {
		case strings.HasPrefix(region, "CPU"), strings.HasPrefix(region, "HPTE"):
			fields := strings.Fields(region[strings.Index(region, ":")+1:])
			if len(fields) < 2 {
				return 0, false
			}
			size = fields[1]
		case strings.HasPrefix(region, "DUMP"):
			fields := strings.Fields(region)
			switch {
			case len(fields) > 6:
				size = fields[4][:len(fields[4])-1]
			case len(fields) > 2:
				size = fields[2]
			default:
				return 0, false
			}
		default:
			if warn != nil {
				warn(region)
			}
			continue
		}
		n, err := strconv.ParseInt(strings.TrimPrefix(size, "0x"), 16, 64)
		if err != nil {
			return 0, false
		}
		total += n
	}
	return total, true
}
