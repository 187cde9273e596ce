package rawsock

import "fmt"

// ringLayout sizes a TPACKET_V3 ring for frames of up to snapLen bytes
// within roughly sizeMB megabytes.
//
// PACKET_MMAP requires:
//  1. frameSize is a multiple of TPACKET_ALIGNMENT (16)
//  2. blockSize is a multiple of pageSize
//  3. blockSize is a multiple of frameSize
func ringLayout(sizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16
	const tpacketHdrLen = 52 // tpacket3_hdr + sockaddr_ll, rounded

	if sizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("ring size must be positive, got %d MB", sizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	// Smallest block holding whole frames and whole pages, capped at 4 MB.
	const maxBlockSize = 4 << 20
	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		blockSize = alignUp(frameSize, pageSize)
	}
	if blockSize%frameSize != 0 {
		// Page aligned but not frame aligned: one frame per block.
		frameSize = blockSize
	}

	numBlocks = max((sizeMB<<20)/blockSize, 1)
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
