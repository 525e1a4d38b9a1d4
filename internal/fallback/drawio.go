package fallback

// drawioDocument is the placeholder returned when no <mxfile> can be
// recovered from model output. It must always pass validation.ValidateDrawio.
const drawioDocument = `<mxfile host="pdc" type="device">
  <diagram id="pdc-fallback" name="Page-1">
    <mxGraphModel dx="800" dy="600" grid="1" gridSize="10" guides="1" tooltips="1" connect="1" arrows="1" fold="1" page="1" pageScale="1" pageWidth="827" pageHeight="1169" math="0" shadow="0">
      <root>
        <mxCell id="0"/>
        <mxCell id="1" parent="0"/>
        <mxCell id="2" value="Diagram unavailable, please retry" style="rounded=1;whiteSpace=wrap;html=1;" vertex="1" parent="1">
          <mxGeometry x="240" y="200" width="240" height="60" as="geometry"/>
        </mxCell>
      </root>
    </mxGraphModel>
  </diagram>
</mxfile>`

// Drawio returns the fixed placeholder draw.io document.
func Drawio() string {
	return drawioDocument
}
