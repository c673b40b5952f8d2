// Package container provides the Docker runtime client used by docker-monitor.
// It wraps the Docker API client, exposes container metadata through the types.Container
// interface, and computes resource usage figures from stats samples.
//
// Key components:
//   - Container: Implements types.Container and captures recreation snapshots.
//   - Client: Implements types.Client (list, inspect, pull, stop, remove, create, connect,
//     start, stats, dangling image listing and pruning, ping).
//   - ComputeStats: CPU, memory, network and block I/O figures from one stats sample.
//   - SelfName: Detection of the container the monitor itself runs in.
//
// Usage example:
//
//	cli, _ := container.NewClient(container.ClientOptions{})
//	containers, _ := cli.ListAllContainers(ctx)
//	for _, c := range containers {
//	    stats, _ := cli.ContainerStats(ctx, c.ID())
//	    fmt.Println(c.Name(), stats.CPUPercent)
//	}
//
// Image pulls authenticate through the registry package, which reads REPO_USER/REPO_PASS or
// the Docker CLI config file.
package container
