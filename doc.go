/*
go-visionedge provides the post processing core of an edge computer vision
stack built on ONNX Runtime.  It decodes raw model output tensors from
NMS-baked object detectors and prior based face detectors into detections
in original image space, anonymizes faces, interpolates detections between
sampled video frames and renders annotated video.

The root package contains the ONNX Runtime bindings, a runtime pool, model
bundle loading and the error values shared by the sub packages.

See the cmd subdirectory for example usage.
*/
package visionedge
