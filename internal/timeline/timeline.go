package timeline

import (
	"math"
	"sort"

	"vignette/internal/review"
)

// Overlay fade and annotation reveal windows, in milliseconds from transition
// start. The gap between hide-end and show-start renders no overlay.
const (
	hideMS         = 300
	showDelayMS    = 400
	showMS         = 300
	annoStartMS    = 800
	annoDurationMS = 1000
)

// Config controls replay timing.
type Config struct {
	FPS          int
	TransitionMS int
	PauseMS      int
}

// Overlay is the comment card state for one frame.
type Overlay struct {
	Author     string
	AvatarPath string
	Text       string
	Opacity    float64
}

// Annotation is the drawn-shape state for one frame. Progress is the reveal
// scalar in [0,1].
type Annotation struct {
	Shapes   []review.Shape
	Progress float64
}

// Frame is one deterministic render state. A nil Camera leaves the session
// camera unchanged. Static frames are content-identical to their predecessor
// and may be duplicated instead of re-rendered.
type Frame struct {
	Time       float64
	Camera     *review.CameraPose
	Overlay    *Overlay
	Annotation *Annotation
	Static     bool
}

// Build produces the per-frame replay states for the given comments. Comments
// without a timestamp are excluded; the remainder are processed in ascending
// timestamp order. Pure and deterministic: identical inputs yield identical
// frames.
func Build(comments []review.CommentEvent, cfg Config) []Frame {
	if cfg.FPS <= 0 {
		return nil
	}

	eligible := make([]review.CommentEvent, 0, len(comments))
	for _, comment := range comments {
		if comment.HasTimestamp() {
			eligible = append(eligible, comment)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return *eligible[i].Timestamp < *eligible[j].Timestamp
	})

	transitionFrames := frameCount(cfg.TransitionMS, cfg.FPS)
	pauseFrames := frameCount(cfg.PauseMS, cfg.FPS)
	frameMS := 1000.0 / float64(cfg.FPS)

	frames := make([]Frame, 0, transitionFrames+len(eligible)*(transitionFrames+pauseFrames))

	// The first comment gets a transition-length hold at its target state
	// instead of a leading transition.
	frames = appendHold(frames, eligible[0], transitionFrames, frameMS, 0)

	for i := 1; i < len(eligible); i++ {
		prev, curr := eligible[i-1], eligible[i]
		frames = appendTransition(frames, prev, curr, transitionFrames, cfg)
		frames = appendPause(frames, curr, pauseFrames, frameMS, float64(cfg.TransitionMS))
	}

	return frames
}

func frameCount(durationMS, fps int) int {
	return int(math.Round(float64(durationMS) / 1000.0 * float64(fps)))
}

// easeInOutCubic maps linear progress to the replay easing curve.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func appendTransition(frames []Frame, prev, curr review.CommentEvent, count int, cfg Config) []Frame {
	interpolateCamera := prev.Camera != nil && curr.Camera != nil
	for i := 0; i < count; i++ {
		p := float64(i+1) / float64(count)
		eased := easeInOutCubic(p)
		elapsedMS := p * float64(cfg.TransitionMS)

		frame := Frame{
			Time: *prev.Timestamp + (*curr.Timestamp-*prev.Timestamp)*p,
		}
		if interpolateCamera {
			frame.Camera = lerpPose(prev.Camera, curr.Camera, eased)
		}
		frame.Overlay = transitionOverlay(prev, curr, elapsedMS)
		frame.Annotation = annotationAt(curr, elapsedMS, annoStartMS)
		frames = append(frames, frame)
	}
	return frames
}

// transitionOverlay fades the previous comment out during the hide window and
// the next comment in during the show window; the gap between them renders no
// overlay.
func transitionOverlay(prev, curr review.CommentEvent, elapsedMS float64) *Overlay {
	switch {
	case elapsedMS < hideMS:
		return &Overlay{
			Author:     prev.AuthorName,
			AvatarPath: prev.AuthorAvatarPath,
			Text:       prev.Content,
			Opacity:    1 - easeInOutCubic(elapsedMS/hideMS),
		}
	case elapsedMS < showDelayMS:
		return nil
	case elapsedMS <= showDelayMS+showMS:
		return &Overlay{
			Author:     curr.AuthorName,
			AvatarPath: curr.AuthorAvatarPath,
			Text:       curr.Content,
			Opacity:    easeInOutCubic((elapsedMS - showDelayMS) / showMS),
		}
	default:
		return &Overlay{
			Author:     curr.AuthorName,
			AvatarPath: curr.AuthorAvatarPath,
			Text:       curr.Content,
			Opacity:    1,
		}
	}
}

func annotationAt(comment review.CommentEvent, elapsedMS, startMS float64) *Annotation {
	if len(comment.Annotation) == 0 {
		return nil
	}
	progress := clamp01((elapsedMS - startMS) / annoDurationMS)
	return &Annotation{Shapes: comment.Annotation, Progress: progress}
}

func appendPause(frames []Frame, curr review.CommentEvent, count int, frameMS, transitionMS float64) []Frame {
	prevProgress := -1.0
	for i := 0; i < count; i++ {
		elapsedMS := transitionMS + float64(i+1)*frameMS
		frame := Frame{
			Time:   *curr.Timestamp,
			Camera: curr.Camera,
			Overlay: &Overlay{
				Author:     curr.AuthorName,
				AvatarPath: curr.AuthorAvatarPath,
				Text:       curr.Content,
				Opacity:    1,
			},
		}
		frame.Annotation = annotationAt(curr, elapsedMS, annoStartMS)
		frame.Static = i > 0 && annotationSettled(frame.Annotation, prevProgress)
		if frame.Annotation != nil {
			prevProgress = frame.Annotation.Progress
		}
		frames = append(frames, frame)
	}
	return frames
}

// appendHold emits the fixed-state frames for the first comment. The
// annotation reveal starts immediately since there is no leading transition.
func appendHold(frames []Frame, comment review.CommentEvent, count int, frameMS, annoStart float64) []Frame {
	prevProgress := -1.0
	for i := 0; i < count; i++ {
		elapsedMS := float64(i+1) * frameMS
		frame := Frame{
			Time:   *comment.Timestamp,
			Camera: comment.Camera,
			Overlay: &Overlay{
				Author:     comment.AuthorName,
				AvatarPath: comment.AuthorAvatarPath,
				Text:       comment.Content,
				Opacity:    1,
			},
		}
		frame.Annotation = annotationAt(comment, elapsedMS, annoStart)
		frame.Static = i > 0 && annotationSettled(frame.Annotation, prevProgress)
		if frame.Annotation != nil {
			prevProgress = frame.Annotation.Progress
		}
		frames = append(frames, frame)
	}
	return frames
}

func annotationSettled(anno *Annotation, prevProgress float64) bool {
	if anno == nil {
		return true
	}
	return anno.Progress >= 1 && prevProgress >= 1
}

func lerpPose(a, b *review.CameraPose, t float64) *review.CameraPose {
	return &review.CameraPose{
		OrbitTheta:  lerp(a.OrbitTheta, b.OrbitTheta, t),
		OrbitPhi:    lerp(a.OrbitPhi, b.OrbitPhi, t),
		OrbitRadius: lerp(a.OrbitRadius, b.OrbitRadius, t),
		TargetX:     lerp(a.TargetX, b.TargetX, t),
		TargetY:     lerp(a.TargetY, b.TargetY, t),
		TargetZ:     lerp(a.TargetZ, b.TargetZ, t),
		FOV:         lerp(a.FOV, b.FOV, t),
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
