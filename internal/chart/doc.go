// Package chart draws the sea level scatter plot with its fitted trend line.
//
// Rendering uses gonum/plot. PNG output goes through vgimg and SVG output
// through vgsvg. Alongside the image the renderer reports one Hotspot per
// visible observation, positioned in the output's own coordinate space, so a
// page can attach hover tooltips with a plain HTML image map.
package chart
