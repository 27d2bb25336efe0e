// Package chatlist renders the active bucket through a virtualized list:
// only rows intersecting the viewport window plus a fixed buffer exist at
// any time, so the mounted row count stays O(viewport) no matter how big
// the bucket is.
package chatlist

import (
	"strings"
)

// RowSource supplies rows to the virtual list by index. Row identity is
// the conversation id, which keeps cached renders valid across
// reorderings.
type RowSource interface {
	Len() int
	RowID(i int) string
	RenderRow(i, width int, selected bool) string
}

// CacheMetrics tracks row synthesis cache performance.
type CacheMetrics struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (m CacheMetrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total) * 100
}

// VirtualList is the windowed renderer. Rows are synthesized on demand
// and cached by conversation id; rows that leave the buffered window are
// evicted, which is what bounds the mounted count.
type VirtualList struct {
	source RowSource

	// scrollOffset is the first visible row index.
	scrollOffset int
	cursor       int
	height       int
	width        int

	// bufferRows is the prewarm margin above and below the window,
	// a quarter of the viewport height.
	bufferRows int

	cache   map[string]string
	metrics CacheMetrics
}

// NewVirtualList creates an empty list over a source.
func NewVirtualList(source RowSource) *VirtualList {
	return &VirtualList{
		source: source,
		cache:  make(map[string]string),
	}
}

// SetSource swaps the backing source. The render cache survives: row
// identity is the conversation id, so unchanged rows stay warm across
// bucket rebuilds.
func (vl *VirtualList) SetSource(source RowSource) {
	vl.source = source
	vl.clamp()
}

// SetSize updates the viewport dimensions. A width change invalidates
// the cache since row rendering depends on width.
func (vl *VirtualList) SetSize(width, height int) {
	if width != vl.width {
		vl.InvalidateAll()
	}
	vl.width = width
	vl.height = height
	vl.bufferRows = height / 4
	vl.clamp()
}

// Height returns the viewport height.
func (vl *VirtualList) Height() int { return vl.height }

// Total returns the virtual row count.
func (vl *VirtualList) Total() int {
	if vl.source == nil {
		return 0
	}
	return vl.source.Len()
}

// Cursor returns the selected row index.
func (vl *VirtualList) Cursor() int { return vl.cursor }

// SelectedID returns the selected row's conversation id, empty when the
// list is empty.
func (vl *VirtualList) SelectedID() string {
	if vl.source == nil || vl.cursor >= vl.source.Len() {
		return ""
	}
	return vl.source.RowID(vl.cursor)
}

// CursorUp moves the selection up and keeps it visible.
func (vl *VirtualList) CursorUp(n int) {
	vl.cursor -= n
	vl.clamp()
	vl.EnsureVisible(vl.cursor)
}

// CursorDown moves the selection down and keeps it visible.
func (vl *VirtualList) CursorDown(n int) {
	vl.cursor += n
	vl.clamp()
	vl.EnsureVisible(vl.cursor)
}

// HalfPageUp moves the cursor up half a viewport.
func (vl *VirtualList) HalfPageUp() { vl.CursorUp(vl.height / 2) }

// HalfPageDown moves the cursor down half a viewport.
func (vl *VirtualList) HalfPageDown() { vl.CursorDown(vl.height / 2) }

// PageUp moves the cursor up a full viewport.
func (vl *VirtualList) PageUp() { vl.CursorUp(vl.height) }

// PageDown moves the cursor down a full viewport.
func (vl *VirtualList) PageDown() { vl.CursorDown(vl.height) }

// GotoTop selects the first row.
func (vl *VirtualList) GotoTop() {
	vl.cursor = 0
	vl.scrollOffset = 0
}

// GotoBottom selects the last row.
func (vl *VirtualList) GotoBottom() {
	vl.cursor = vl.Total() - 1
	vl.clamp()
	vl.EnsureVisible(vl.cursor)
}

// AtTop reports whether the window shows the first row.
func (vl *VirtualList) AtTop() bool { return vl.scrollOffset == 0 }

// AtBottom reports whether the window shows the last row.
func (vl *VirtualList) AtBottom() bool { return vl.scrollOffset >= vl.maxScrollOffset() }

// ScrollPercent returns the scroll position as 0.0 to 1.0, derived from
// the virtual length so the scrollbar reflects true content size.
func (vl *VirtualList) ScrollPercent() float64 {
	maxOffset := vl.maxScrollOffset()
	if maxOffset <= 0 {
		return 0.0
	}
	return float64(vl.scrollOffset) / float64(maxOffset)
}

// EnsureVisible scrolls just enough to bring index into the window.
func (vl *VirtualList) EnsureVisible(index int) bool {
	total := vl.Total()
	if index < 0 || index >= total {
		return false
	}
	old := vl.scrollOffset
	if index < vl.scrollOffset {
		vl.scrollOffset = index
	}
	if index >= vl.scrollOffset+vl.height {
		vl.scrollOffset = index - vl.height + 1
	}
	vl.clampScroll()
	return vl.scrollOffset != old
}

// InvalidateRow drops one conversation's cached render so the next pass
// re-synthesizes it in place.
func (vl *VirtualList) InvalidateRow(id string) {
	delete(vl.cache, cacheKey(id, false))
	delete(vl.cache, cacheKey(id, true))
}

// InvalidateAll clears the whole render cache.
func (vl *VirtualList) InvalidateAll() {
	vl.cache = make(map[string]string)
}

// Metrics returns cache hit/miss/eviction counters.
func (vl *VirtualList) Metrics() CacheMetrics { return vl.metrics }

// MountedRows returns the number of distinct rows currently synthesized.
// The virtualization bound: always O(viewport), never O(bucket).
func (vl *VirtualList) MountedRows() int {
	ids := make(map[string]struct{}, len(vl.cache))
	for key := range vl.cache {
		ids[strings.TrimSuffix(strings.TrimSuffix(key, "|sel"), "|row")] = struct{}{}
	}
	return len(ids)
}

// Render returns the visible rows joined by newlines. It prewarms the
// buffer zone and then evicts everything outside it, keeping the cache
// window-sized.
func (vl *VirtualList) Render() string {
	total := vl.Total()
	if total == 0 || vl.height <= 0 || vl.width <= 0 {
		return ""
	}

	start := vl.scrollOffset
	end := min(start+vl.height, total)

	bufStart := max(0, start-vl.bufferRows)
	bufEnd := min(total, end+vl.bufferRows)

	// Prewarm the buffer zone.
	for i := bufStart; i < start; i++ {
		vl.renderRow(i, false)
	}
	for i := end; i < bufEnd; i++ {
		vl.renderRow(i, false)
	}

	var sb strings.Builder
	sb.Grow(vl.height * (vl.width + 16))
	for i := start; i < end; i++ {
		if i > start {
			sb.WriteByte('\n')
		}
		sb.WriteString(vl.renderRow(i, i == vl.cursor))
	}

	vl.evictOutside(bufStart, bufEnd)
	return sb.String()
}

// renderRow returns the cached render or synthesizes and caches it.
func (vl *VirtualList) renderRow(i int, selected bool) string {
	key := cacheKey(vl.source.RowID(i), selected)
	if s, ok := vl.cache[key]; ok {
		vl.metrics.Hits++
		return s
	}
	vl.metrics.Misses++
	s := vl.source.RenderRow(i, vl.width, selected)
	vl.cache[key] = s
	return s
}

// evictOutside drops cache entries for rows outside [bufStart, bufEnd).
func (vl *VirtualList) evictOutside(bufStart, bufEnd int) {
	keep := make(map[string]struct{}, (bufEnd-bufStart)*2)
	for i := bufStart; i < bufEnd; i++ {
		id := vl.source.RowID(i)
		keep[cacheKey(id, false)] = struct{}{}
		keep[cacheKey(id, true)] = struct{}{}
	}
	for key := range vl.cache {
		if _, ok := keep[key]; !ok {
			delete(vl.cache, key)
			vl.metrics.Evictions++
		}
	}
}

func cacheKey(id string, selected bool) string {
	if selected {
		return id + "|sel"
	}
	return id + "|row"
}

// clamp keeps cursor and scroll inside the current total.
func (vl *VirtualList) clamp() {
	total := vl.Total()
	if vl.cursor >= total {
		vl.cursor = total - 1
	}
	if vl.cursor < 0 {
		vl.cursor = 0
	}
	vl.clampScroll()
}

func (vl *VirtualList) clampScroll() {
	maxOffset := vl.maxScrollOffset()
	if vl.scrollOffset < 0 {
		vl.scrollOffset = 0
	} else if vl.scrollOffset > maxOffset {
		vl.scrollOffset = maxOffset
	}
}

func (vl *VirtualList) maxScrollOffset() int {
	total := vl.Total()
	if total <= vl.height {
		return 0
	}
	return total - vl.height
}
