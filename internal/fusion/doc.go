// Package fusion evaluates the two-branch network that maps a rendered
// thumbnail and a scaled feature vector to (alpha, beta).
//
//	image   [3,256,256] -> conv 3->32 -> relu -> pool
//	                    -> conv 32->16 -> relu -> pool
//	                    -> conv 16->8  -> relu -> pool -> flatten 8192
//	                    -> linear 64 -> relu                 (dropout: train only)
//	tabular [9]         -> linear 64 -> relu -> linear 32 -> relu
//	concat  [96]        -> linear 128 -> relu                (dropout: train only)
//	                    -> linear 2 = (alpha, beta)
//
// Convolutions are 3x3 with one pixel of zero padding; pooling is 2x2 max.
// Parameters are read from a safetensors file keyed by the PyTorch
// state-dict names, see [Load]. A Model never changes after construction, so
// one instance serves concurrent requests without locking.
package fusion
