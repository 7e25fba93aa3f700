package jobxredis

import "github.com/Abraxas-365/gatekeeper/pkg/errx"

var redisErrors = errx.NewRegistry("JOBX_REDIS")

var (
	ErrEnqueue   = redisErrors.Register("ENQUEUE", errx.TypeExternal, 0, "Redis enqueue failed")
	ErrDequeue   = redisErrors.Register("DEQUEUE", errx.TypeExternal, 0, "Redis dequeue failed")
	ErrUpdate    = redisErrors.Register("UPDATE", errx.TypeExternal, 0, "Redis job update failed")
	ErrPromote   = redisErrors.Register("PROMOTE", errx.TypeExternal, 0, "Redis promote failed")
	ErrNotFound  = redisErrors.Register("NOT_FOUND", errx.TypeNotFound, 0, "Job not found in Redis")
	ErrMarshal   = redisErrors.Register("MARSHAL", errx.TypeInternal, 0, "Failed to marshal job data")
	ErrUnmarshal = redisErrors.Register("UNMARSHAL", errx.TypeInternal, 0, "Failed to unmarshal job data")
)
