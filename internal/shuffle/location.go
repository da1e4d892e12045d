package shuffle

import (
	"fmt"
	"net"
	"strconv"
)

// PartitionID identifies one output partition of a query stage.
type PartitionID struct {
	JobID       string `json:"job_id"`
	StageID     int    `json:"stage_id"`
	PartitionID int    `json:"partition_id"`
}

func (p PartitionID) String() string {
	return fmt.Sprintf("%s/%d/%d", p.JobID, p.StageID, p.PartitionID)
}

// ExecutorMeta describes an executor that may hold a partition.
type ExecutorMeta struct {
	ID   string `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Address returns host:port.
func (e ExecutorMeta) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e ExecutorMeta) String() string {
	return fmt.Sprintf("%s@%s", e.ID, e.Address())
}

// PartitionLocation names a partition and the executors that can serve it,
// in preference order.
type PartitionLocation struct {
	PartitionID PartitionID    `json:"partition_id"`
	Executors   []ExecutorMeta `json:"executors"`
}
