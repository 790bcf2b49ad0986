// Package frame captures camera frames and turns them into classifier input.
//
// A Source yields RGB565 frames. DevMem reads them from the on-chip video
// buffer of a DE1-SoC style board through /dev/mem: it enables the video-in
// DMA, waits for a push-button press, stops the DMA and copies the frame.
//
// Conversion helpers reduce a frame to 8-bit gray (GrayFromRGB565),
// block-average it down to the 28x28 network input (Downscale, ToInput) and
// read or write BMP files for inspection.
package frame
