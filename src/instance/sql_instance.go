// Package instance contains helper methods for sampling instance-level server state
package instance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
	log "github.com/sirupsen/logrus"

	"github.com/5l1v3r1/memsql-top/src/connection"
)

const (
	serverVersionQuery = "select @@memsql_version as version"

	// The memory figure is sampled from the aggregator we are connected to,
	// not aggregated across the cluster.
	memoryStatusQuery = "show status like 'Total_server_memory'"
)

// minSupportedMajor is the first release that exposes
// distributed_plancache_summary with per-plan counters.
const minSupportedMajor = 5

var versionRegex = regexp.MustCompile(`\b(\d+\.\d+\.\d+)\b`)

// versionRow is the row result of serverVersionQuery
type versionRow struct {
	Version string `db:"version"`
}

// statusRow is a single "show status like ..." result line
type statusRow struct {
	VariableName string `db:"Variable_name"`
	Value        string `db:"Value"`
}

// ServerVersion queries and parses the server version
func ServerVersion(con *connection.SQLConnection) (semver.Version, error) {
	rows := make([]versionRow, 0)
	if err := con.Query(&rows, serverVersionQuery); err != nil {
		return semver.Version{}, fmt.Errorf("query server version: %w", err)
	}
	if length := len(rows); length != 1 {
		return semver.Version{}, fmt.Errorf("expected 1 row for server version, got %d", length)
	}

	versionStr := versionRegex.FindString(rows[0].Version)
	if versionStr == "" {
		return semver.Version{}, fmt.Errorf("could not parse server version %q", rows[0].Version)
	}

	return semver.ParseTolerant(versionStr)
}

// CheckSupportedVersion verifies the server is new enough to expose plan
// cache counters.
func CheckSupportedVersion(con *connection.SQLConnection) error {
	version, err := ServerVersion(con)
	if err != nil {
		return err
	}
	log.Debugf("Server version: %s", version)

	if version.Major < minSupportedMajor {
		return fmt.Errorf("unsupported server version %s: plan cache counters require %d.0.0 or newer", version, minSupportedMajor)
	}
	return nil
}

// TotalServerMemory samples the Total_server_memory status variable and
// returns the leading numeric token of its value. Current servers report
// the figure in megabytes, e.g. "2048 MB".
func TotalServerMemory(con *connection.SQLConnection) (float64, error) {
	var row statusRow
	if err := con.Get(&row, memoryStatusQuery); err != nil {
		return 0, fmt.Errorf("query server memory status: %w", err)
	}

	fields := strings.Fields(row.Value)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty %s status value", row.VariableName)
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed %s status value %q: %w", row.VariableName, row.Value, err)
	}
	return value, nil
}
