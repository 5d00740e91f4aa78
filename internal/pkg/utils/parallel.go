package utils

import (
	"net"
	"sync"
)

// ParallelMap 用最多 workers 个协程对 input 逐个执行 fn，结果顺序与输入一致
func ParallelMap[T, R any](input []T, workers int, fn func(T) R) []R {
	out := make([]R, len(input))
	if len(input) == 0 {
		return out
	}
	if workers <= 1 || len(input) == 1 {
		for i, v := range input {
			out[i] = fn(v)
		}
		return out
	}
	workers = min(workers, len(input))

	var wg sync.WaitGroup
	next := make(chan int, len(input))
	for i := range input {
		next <- i
	}
	close(next)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range next {
				out[i] = fn(input[i])
			}
		}()
	}
	wg.Wait()
	return out
}

// GetLocalIP 第一个非回环 IPv4 地址，用于 Kafka client.id
func GetLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ip := ipNet.IP.To4(); ip != nil {
				return ip.String(), nil
			}
		}
	}
	return "", nil
}
