package serde

import (
	"fmt"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/serde/protobuf"
	"github.com/dshills/QuantaDist/internal/shuffle"
)

const maxPort = 65535

// DecodePartitionLocation converts one wire partition location. Every
// executor listed must be addressable; the order of executors is kept.
func DecodePartitionLocation(loc *protobuf.PartitionLocation) (shuffle.PartitionLocation, error) {
	if loc == nil {
		return shuffle.PartitionLocation{}, qerrors.MissingFieldError("ShuffleReaderExecNode", "partition_location")
	}
	pid := loc.PartitionId
	if pid == nil {
		return shuffle.PartitionLocation{}, qerrors.MissingFieldError("PartitionLocation", "partition_id")
	}
	if pid.JobId == "" {
		return shuffle.PartitionLocation{}, qerrors.MissingFieldError("PartitionId", "job_id")
	}
	if len(loc.ExecutorMeta) == 0 {
		return shuffle.PartitionLocation{}, qerrors.MissingFieldError("PartitionLocation", "executor_meta").
			WithDetail(protobuf.Text(loc))
	}

	out := shuffle.PartitionLocation{
		PartitionID: shuffle.PartitionID{
			JobID:       pid.JobId,
			StageID:     int(pid.StageId),
			PartitionID: int(pid.PartitionId),
		},
		Executors: make([]shuffle.ExecutorMeta, 0, len(loc.ExecutorMeta)),
	}
	for i, meta := range loc.ExecutorMeta {
		if meta == nil {
			return shuffle.PartitionLocation{}, qerrors.MissingFieldError("PartitionLocation", "executor_meta").
				WithDetailf("executor %d of partition %s is empty", i, out.PartitionID)
		}
		if meta.Id == "" {
			return shuffle.PartitionLocation{}, qerrors.MissingFieldError("ExecutorMetadata", "id").
				WithDetail(protobuf.Text(meta))
		}
		if meta.Host == "" {
			return shuffle.PartitionLocation{}, qerrors.InvalidPartitionLocationError(
				fmt.Sprintf("executor %s of partition %s has no host", meta.Id, out.PartitionID))
		}
		if meta.Port == 0 || meta.Port > maxPort {
			return shuffle.PartitionLocation{}, qerrors.InvalidPartitionLocationError(
				fmt.Sprintf("executor %s of partition %s has invalid port %d", meta.Id, out.PartitionID, meta.Port))
		}
		out.Executors = append(out.Executors, shuffle.ExecutorMeta{ID: meta.Id, Host: meta.Host, Port: int(meta.Port)})
	}
	return out, nil
}

// DecodePartitionLocations decodes every entry; the first failure aborts.
func DecodePartitionLocations(locs []*protobuf.PartitionLocation) ([]shuffle.PartitionLocation, error) {
	out := make([]shuffle.PartitionLocation, len(locs))
	for i, loc := range locs {
		decoded, err := DecodePartitionLocation(loc)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}
